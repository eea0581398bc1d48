package models

const (
	ThinkTag           = `(?s)<think>.*?</think>`
	ChunkHeaderFormat  = "===== Chunk %d =====\n"
	MultiQueryTraceKey = "multiquery questions"
	DefaultDomain      = "scientific paper"
)

var (
	// ChunkReviewPromptTemplate takes the chunk text
	ChunkReviewPromptTemplate = `You are reviewing text chunks extracted from a document before they are stored in a vector database.
Your job is to keep bad or irrelevant data out of the database.

What makes text irrelevant:
- it is too short to develop an idea
- it contains only numbers
- it is the caption of an image or figure
- it is only a list of people's names
- it is out of context and cannot be understood on its own
- as a rule of thumb, text shorter than 80 tokens is not relevant

What makes text relevant:
- it expresses findings, ideas, arguments or descriptions
- a reader can infer semantic meaning from it

Respond only with a JSON object of the form {"relevant": true} or {"relevant": false}.

<chunk>
%s
</chunk>
`

	// MultiQueryPromptTemplate takes the number of queries, the query and the domain
	MultiQueryPromptTemplate = `You are the query understanding system of a patent drafting application.
Generate %d search queries based on the query below. The queries should expand the search for information in a %s.

<query>
%s
</query>

Stylistically the queries should be optimized for matching text chunks in a vector database:
prefer literal phrasing that could appear in the source text over natural questions.

Respond only with a JSON object of the form {"questions": ["...", "..."]}.
`

	// MetadataPromptTemplate takes the document excerpt
	MetadataPromptTemplate = `Read the document excerpt below and extract:
- "method": the experimental or technical methods described
- "hypothetical_questions": questions this document could answer
- "keywords": the most important domain keywords

Respond only with a JSON object with the keys "method", "hypothetical_questions" and "keywords", each a list of strings.

<document>
%s
</document>
`

	// AnswerPromptTemplate takes the retrieved context and the question
	AnswerPromptTemplate = `Use the provided context to answer the question. Cite chunk numbers where possible.

Context:
%s
Question: %s`
)
