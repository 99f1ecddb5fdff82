package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/LouYuanbo1/catalogsync/internal/domain/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	chatmodel "github.com/cloudwego/eino/components/model"
)

const maxTags = 8

var tagTemplate = prompt.FromMessages(schema.FString,
	schema.SystemMessage("You label wellness products for catalog search. "+
		"Answer with at most 8 short lowercase tags separated by commas and nothing else."),
	schema.UserMessage("Name: {name}\nCategory: {category}\nDescription: {description}\n"+
		"Ingredients: {ingredients}\nHealth benefits: {benefits}"),
)

// Classifier asks a chat model for search tags describing an entry.
// The prompt, model call and reply parsing run as one compiled graph.
type Classifier struct {
	graph compose.Runnable[map[string]any, []string]
}

func NewClassifier(ctx context.Context, m chatmodel.BaseChatModel) (*Classifier, error) {
	graph := compose.NewGraph[map[string]any, []string]()

	if err := graph.AddChatTemplateNode("prompt", tagTemplate); err != nil {
		return nil, fmt.Errorf("add prompt node: %w", err)
	}
	if err := graph.AddChatModelNode("llm", m); err != nil {
		return nil, fmt.Errorf("add llm node: %w", err)
	}
	parse := compose.InvokableLambda(func(_ context.Context, reply *schema.Message) ([]string, error) {
		return parseTags(reply.Content), nil
	})
	if err := graph.AddLambdaNode("parseTags", parse); err != nil {
		return nil, fmt.Errorf("add parse node: %w", err)
	}

	for _, edge := range [][2]string{
		{compose.START, "prompt"},
		{"prompt", "llm"},
		{"llm", "parseTags"},
		{"parseTags", compose.END},
	} {
		if err := graph.AddEdge(edge[0], edge[1]); err != nil {
			return nil, fmt.Errorf("add edge %s -> %s: %w", edge[0], edge[1], err)
		}
	}

	compiled, err := graph.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile tag graph: %w", err)
	}
	return &Classifier{graph: compiled}, nil
}

func (c *Classifier) Classify(ctx context.Context, entry *model.CatalogEntry) ([]string, error) {
	tags, err := c.graph.Invoke(ctx, map[string]any{
		"name":        entry.Name,
		"category":    entry.Category,
		"description": entry.Description,
		"ingredients": strings.Join(entry.Ingredients, ", "),
		"benefits":    strings.Join(entry.HealthBenefits, ", "),
	})
	if err != nil {
		return nil, fmt.Errorf("classify %s: %w", entry.StableKey, err)
	}
	return tags, nil
}

// parseTags splits a comma or newline separated reply, dropping blanks,
// duplicates and list markers.
func parseTags(reply string) []string {
	fields := strings.FieldsFunc(reply, func(r rune) bool { return r == ',' || r == '\n' })
	seen := make(map[string]bool, len(fields))
	tags := make([]string, 0, len(fields))
	for _, f := range fields {
		tag := strings.ToLower(strings.Trim(strings.TrimSpace(f), "-*•.\"' "))
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		tags = append(tags, tag)
		if len(tags) == maxTags {
			break
		}
	}
	return tags
}
