package llm

// Page recognition prompt. One page image in, raw Markdown out.
const ocrPrompt = `Convert this page of a math exam to Markdown.
If there is a figure, image, graph, chart or table, ignore it; do not try to recreate it in Markdown.
Math must be valid Markdown math: inline equations in single dollar signs $...$ and displayed equations in double dollar signs $$...$$.
Output ONLY the raw Markdown for this page, with no preamble and no document wrappers.`

// Structure extraction prompts. The whole exam's Markdown in, a JSON exam
// structure out.
const extractSystemPrompt = `You are an exam document parser. You read the Markdown of a full exam and output its structure as strict JSON. Output nothing but JSON.`

const extractPrompt = `Parse the exam below into this JSON structure:

{
  "metadata": {"title": "...", "duration_minutes": 90},
  "elements": [
    {"type": "text", "content": "..."},
    {"type": "multiple_choice", "content": "...", "data": {"options": ["...", "...", "...", "..."]}},
    {"type": "true_false", "content": "...", "data": {"clauses": ["...", "...", "...", "..."]}},
    {"type": "short_answer", "content": "..."}
  ]
}

Rules:
- "elements" lists every component of the exam in original order.
- "text" elements are instructions or headings, not questions.
- Question "content" is the stem only, without its number ("1.", "Question 2", ...).
- Multiple-choice "options" and true/false "clauses" carry exactly 4 entries, without leading labels ("A)", "a.", ...).
- Short-answer questions have no "data".
- "duration_minutes" is null if the exam does not state a duration.
- Preserve all math markup exactly as it appears.

Exam:

%s`

// Generation prompts, one per question type. Each takes the source question
// as JSON and demands a brand new analogous question plus its full answer.
const generateSystemPrompt = `You are an exam author. Given one example question as JSON, you write a new question of the same type, same topic and same difficulty, but with different numbers, wording and correct answer. Output nothing but JSON.`

const generateMultipleChoicePrompt = `Write one new multiple-choice question analogous to this example:

%s

Answer with this JSON structure:

{
  "content": "the new question stem in Markdown",
  "data": {"options": ["option 0", "option 1", "option 2", "option 3"]},
  "answer": {
    "selected_option": 0,
    "explanation": "detailed Markdown explanation of why the selected option is correct",
    "error_analysis": ["per-option Markdown note on the mistake that would lead a student to pick it", "...", "...", "..."]
  }
}

"selected_option" is the 0-based index of the correct option. "error_analysis" has exactly one entry per option, in order.`

const generateTrueFalsePrompt = `Write one new true/false question analogous to this example:

%s

Answer with this JSON structure:

{
  "content": "the new question stem in Markdown",
  "data": {"clauses": ["clause 0", "clause 1", "clause 2", "clause 3"]},
  "answer": {
    "clause_correctness": [true, false, true, false],
    "explanations": ["per-clause Markdown explanation of why it is true or false", "...", "...", "..."],
    "general_explanation": "optional step-by-step Markdown solution covering all clauses"
  }
}

"clause_correctness" and "explanations" have exactly one entry per clause, in order.`

const generateShortAnswerPrompt = `Write one new short-answer question analogous to this example:

%s

Answer with this JSON structure:

{
  "content": "the new question stem in Markdown",
  "answer": {
    "answer_text": "the number, word or phrase that answers the question",
    "explanation": "detailed step-by-step Markdown solution"
  }
}`
