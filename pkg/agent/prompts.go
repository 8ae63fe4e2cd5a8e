package agent

import (
	"fmt"
	"strings"

	"github.com/deepscout/deepscout/pkg/domain"
)

const validatorSystemPrompt = `You are the intake step of a research agent that produces comprehensive research reports. You evaluate whether a user's request is a researchable topic.`

func buildValidatorPrompt(topic string, history []domain.Exchange) string {
	var b strings.Builder

	// Include prior clarification turns, excluding the current query,
	// so a refined topic is judged in context.
	if len(history) > 1 {
		b.WriteString("Conversation so far:\n\n")
		for _, ex := range history[:len(history)-1] {
			role := "User"
			if ex.Role == "assistant" {
				role = "Assistant"
			}
			fmt.Fprintf(&b, "%s: %s\n\n", role, ex.Content)
		}
	}

	fmt.Fprintf(&b, `The user has just sent this query: %q

Evaluate whether this query is:
1. A valid research topic that a comprehensive report can be written on
2. An invalid request (not asking for research or a report)
3. A request that needs clarification before research can proceed

A valid research topic is a clear subject that can be researched in depth.
Examples: "The impact of artificial intelligence on healthcare", "History and evolution of renewable energy"

An invalid request might be a command, a question unrelated to research, or something that doesn't make sense.
Examples: "What's the weather today?", "Tell me a joke", "Send an email to John"

A request needing clarification might be too vague, too broad, or ambiguous.
Examples: "AI", "Tell me about science", "Research this topic"

Respond with status "valid", "invalid", or "needs_clarification", your reasoning, and, when clarification is needed, a specific question to ask the user.`, topic)

	return b.String()
}

const validatorSchema = `{
  "type": "object",
  "properties": {
    "status": {
      "type": "string",
      "description": "The status of the user query: 'valid', 'invalid', or 'needs_clarification'."
    },
    "reasoning": {
      "type": "string",
      "description": "Explanation for the decision."
    },
    "clarification_question": {
      "type": "string",
      "description": "Question to ask the user if clarification is needed."
    }
  },
  "required": ["status", "reasoning", "clarification_question"],
  "additionalProperties": false
}`

const plannerSystemPrompt = `You are a research planner. You break research topics into subtopics and concrete, searchable questions.`

func buildPlannerPrompt(topic string) string {
	return fmt.Sprintf(`Develop a detailed research plan for the topic: %q.

The research plan should:
1. Break down the topic into 5-7 key subtopics to investigate
2. For each subtopic, provide 2-3 specific questions to research
3. Arrange these in a logical order, from foundational concepts to more specific aspects
4. Focus on factual, informative aspects that would be useful for a research report
5. Ensure each question is specific enough to be used as a search query`, topic)
}

const plannerSchema = `{
  "type": "object",
  "properties": {
    "topics": {
      "type": "array",
      "description": "A list of research subtopics to investigate",
      "items": {
        "type": "object",
        "properties": {
          "title": {
            "type": "string",
            "description": "The title of the research subtopic"
          },
          "questions": {
            "type": "array",
            "description": "Questions related to the research subtopic",
            "items": {"type": "string"}
          }
        },
        "required": ["title", "questions"],
        "additionalProperties": false
      }
    }
  },
  "required": ["topics"],
  "additionalProperties": false
}`

const summarizerSystemPrompt = `You are a research assistant that summarizes web search results into clear, concise, and informative summaries with proper citations.`

func buildSummarizerPrompt(question string, results []domain.SearchResult, sc domain.SearchContext) string {
	var b strings.Builder

	fmt.Fprintf(&b, "I'm researching the following question: %q\n\n", question)

	b.WriteString("Research context:\n")
	fmt.Fprintf(&b, "- Main research topic: %s\n", sc.Topic)
	if sc.Subtopic != "" {
		fmt.Fprintf(&b, "- Current subtopic: %s\n", sc.Subtopic)
	}
	fmt.Fprintf(&b, "- Research iteration: %d\n\n", sc.Iteration+1)

	b.WriteString("Here are the search results I found:\n\n")
	for i, r := range results {
		fmt.Fprintf(&b, "Result %d [%d]:\nTitle: %s\nURL: %s\nSnippet: %s\n\n", i+1, i+1, r.Title, r.URL, r.Snippet)
	}

	b.WriteString(`Please provide a comprehensive summary of the key information from these search results that is relevant to my question.
Include important facts, definitions, and insights.
Organize the information logically and make it easy to understand.
If there are conflicting viewpoints, please note them.

IMPORTANT: When referencing information from the search results, include the citation number in square brackets [X] after the relevant information.
For example: "According to recent studies, AI has significant impacts on healthcare [2]."`)

	return b.String()
}

const gapSystemPrompt = `You decide whether collected research findings are sufficient to write a comprehensive report, and name the specific gaps when they are not.`

func buildGapPrompt(topic string, plan *domain.ResearchPlan, findings []domain.Finding) string {
	var b strings.Builder

	fmt.Fprintf(&b, "I'm researching the topic: %q\n\n", topic)

	if plan != nil && len(plan.Questions) > 0 {
		b.WriteString("My original research plan covered these questions:\n")
		for _, q := range plan.Questions {
			fmt.Fprintf(&b, "- %s\n", q.Text)
		}
		b.WriteString("\n")
	}

	b.WriteString("So far, I've collected the following research summaries:\n\n")

	for i, f := range findings {
		fmt.Fprintf(&b, "Research Step %d: %s\n", i+1, f.Question)
		fmt.Fprintf(&b, "Summary: %s\n\n", f.Summary)
	}

	b.WriteString(`Based on these summaries, do I have enough information to create a comprehensive research report on the topic?
Consider whether the key aspects of the topic have been covered and if there are any significant gaps in the research.

Report whether the research is complete, your reasoning, and the specific areas or questions that still need to be researched. Each gap must be phrased as a searchable question. If the research is complete, return an empty gaps list.`)

	return b.String()
}

const gapSchema = `{
  "type": "object",
  "properties": {
    "is_complete": {
      "type": "boolean",
      "description": "Whether the research is considered complete"
    },
    "reasoning": {
      "type": "string",
      "description": "Explanation of why the research is or is not complete"
    },
    "gaps": {
      "type": "array",
      "description": "Specific gaps in the research that need to be addressed",
      "items": {"type": "string"}
    }
  },
  "required": ["is_complete", "reasoning", "gaps"],
  "additionalProperties": false
}`

const synthesizerSystemPrompt = `You are a research report writer that creates comprehensive, well-structured reports in Markdown format.`

func buildSynthesizerPrompt(topic string, plan *domain.ResearchPlan, findings []domain.Finding, citations []string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "I've been researching the topic: %q\n\n", topic)

	if plan != nil && len(plan.Questions) > 0 {
		b.WriteString("My research plan was:\n")
		for _, q := range plan.Questions {
			fmt.Fprintf(&b, "- %s\n", q.Text)
		}
		b.WriteString("\n")
	}

	b.WriteString("Here are the summaries of my research:\n\n")
	for _, f := range findings {
		fmt.Fprintf(&b, "## Research on: %s\n\n%s\n\n", f.Question, f.Summary)
	}

	if len(citations) > 0 {
		b.WriteString("## Bibliography\n\n")
		for i, url := range citations {
			fmt.Fprintf(&b, "[%d] %s\n", i+1, url)
		}
		b.WriteString("\n")
	}

	b.WriteString(`Please create a comprehensive, well-structured research report in Markdown format based on this information.

The report should:
1. Have a clear title and introduction explaining the topic
2. Be organized into logical sections with appropriate headings
3. Present the information in a coherent narrative that flows well
4. Include relevant facts, insights, and analysis from the research summaries
5. Maintain all citation references from the research summaries in your report
6. Include the bibliography section at the end of the report
7. Have a conclusion that summarizes the key findings

Format the report using proper Markdown syntax with headings, bullet points, emphasis, etc.`)

	return b.String()
}

// contextualizeQuery anchors a question to the run's topic and subtopic so
// that general-purpose search engines stay on subject.
func contextualizeQuery(question string, sc domain.SearchContext) string {
	query := question
	if sc.Topic != "" {
		query = fmt.Sprintf("[Research on: %s] %s", sc.Topic, query)
	}
	if sc.Subtopic != "" {
		query = fmt.Sprintf("%s [Subtopic: %s]", query, sc.Subtopic)
	}
	return query
}
