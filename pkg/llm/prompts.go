package llm

import (
	"fmt"
	"time"
)

const planningSystemPrompt = `You are a strategic research planner.
Given a research topic, reason about what a thorough investigation needs to cover,
then propose the initial web search queries that would gather that coverage.
Think about distinct angles: definitions, current state, key players, open problems.`

const planParsingSystemPrompt = `You are a research assistant.
Extract the concrete search queries from the research plan below.`

const summarizerSystemPrompt = `You are a research extraction specialist.
Summarize the raw web page content below with respect to the research query.
Keep every fact, number and name that bears on the query; drop navigation,
boilerplate and unrelated sections. Answer with the summary only.`

const evaluationSystemPrompt = `You are a research query optimizer.
You are given a research topic, the search queries already executed, and the
results gathered so far. Decide whether the results are sufficient to answer
the topic comprehensively. If gaps remain, state them and propose the specific
follow-up search queries that would close them. If the evidence is sufficient,
say so and propose no queries.`

const evaluationParsingSystemPrompt = `Extract follow-up search queries from the
evaluation below. If the evaluation concludes no further research is needed,
return an empty list.`

const reportSystemPrompt = `You are a senior research analyst.
Write a comprehensive Markdown research report on the given topic using only
the provided source summaries. Structure it with an introduction, key findings,
discussion and conclusion, and cite sources by title.`

const imagePromptSystemPrompt = `You are an expert graphic designer.
Write a single concise prompt for an image generation model to produce a
cover illustration for a research report on the given topic. Describe the
scene and style; do not include any text in the image.`

// queriesSchema is appended to parsing prompts so JSON mode has a shape
// to fill in.
const queriesSchema = `Return the JSON object directly without any formatting or additional text. Make sure to answer in valid json and include all necessary properties:{
  "type": "object",
  "properties": {
    "queries": {
      "type": "array",
      "items": {
        "type": "string"
      },
      "description": "List of search queries"
    }
  },
  "required": ["queries"]
}`

// dateContext anchors planning and evaluation to today, so "recent"
// means recent.
func dateContext() string {
	now := time.Now()
	return fmt.Sprintf("Current date is %s (%s %d, %d).",
		now.Format("2006-01-02"), now.Month().String(), now.Day(), now.Year())
}
