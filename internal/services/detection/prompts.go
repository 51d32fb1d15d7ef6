package detection

import (
	"fmt"
	"strings"
)

const mappingPromptTemplate = `You are analysing a screenshot of a %s page for browser automation.

A UI localizer found these elements:
%s
Map each of the following target fields onto one of the elements above:
%s
Respond with ONLY a JSON object. Use the field names as keys:
{"<field>": {"element_index": <index from the list>, "confidence": <0.0-1.0>, "reasoning": "<one sentence>"}}

Leave out any field that has no matching element. Do not guess.`

const genericPromptTemplate = `You are analysing a screenshot of a web page for browser automation.

A UI localizer found these elements:
%s
Does any element match this description: %q?

Respond with ONLY a JSON object:
{"found": true|false, "element_index": <index from the list>, "confidence": <0.0-1.0>, "reasoning": "<one sentence>"}`

var contextLabels = map[Context]string{
	ContextLogin:   "login",
	ContextSearch:  "search",
	ContextLinks:   "content",
	ContextGeneric: "web",
}

func mappingPrompt(dctx Context, fields []Field, elements string) string {
	var targets strings.Builder
	for _, f := range fields {
		fmt.Fprintf(&targets, "- %s: %s", f.Name, f.Description)
		if len(f.Keywords) > 0 {
			fmt.Fprintf(&targets, " (hints: %s)", strings.Join(f.Keywords, ", "))
		}
		targets.WriteByte('\n')
	}

	label, ok := contextLabels[dctx]
	if !ok {
		label = string(dctx)
	}
	return fmt.Sprintf(mappingPromptTemplate, label, elements, targets.String())
}

func genericPrompt(description, elements string) string {
	return fmt.Sprintf(genericPromptTemplate, elements, description)
}
