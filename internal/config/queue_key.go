package config

// Queue lane names. Each lane maps to an asynq queue so that page OCR,
// extraction and generation can be scaled independently.
type QueueKeyStruct struct {
	OCRLane      string
	ExtractLane  string
	GenerateLane string
}

var QueueKey = &QueueKeyStruct{
	OCRLane:      "ocr",
	ExtractLane:  "extract",
	GenerateLane: "generate",
}

// Task type names registered on the asynq mux.
type TaskKeyStruct struct {
	OCRInit          string
	OCRPage          string
	ExtractExam      string
	GenerateQuestion string
}

var TaskKey = &TaskKeyStruct{
	OCRInit:          "ocr:init",
	OCRPage:          "ocr:page",
	ExtractExam:      "exam:extract",
	GenerateQuestion: "exam:generate",
}
