package contextstore

import (
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/promptmesh/contextcore/types"
)

// Prompt slot names recognized by BuildPrompt, one per context type plus the
// running token count.
const (
	SlotSystem        = "system_context"
	SlotUser          = "user_context"
	SlotMemory        = "memory_context"
	SlotAgent         = "agent_context"
	SlotTool          = "tool_context"
	SlotCollaboration = "collaboration_context"
	SlotEnvironment   = "environment_context"
	SlotTokenCount    = "token_count"
)

var slotByType = map[types.ContextType]string{
	types.ContextSystem:        SlotSystem,
	types.ContextUser:          SlotUser,
	types.ContextMemory:        SlotMemory,
	types.ContextAgent:         SlotAgent,
	types.ContextTool:          SlotTool,
	types.ContextCollaboration: SlotCollaboration,
	types.ContextEnvironment:   SlotEnvironment,
}

var placeholderRe = regexp.MustCompile(`\{([a-zA-Z0-9_]+)\}`)

// BuildPrompt renders the current snapshot into the template. Same-type item
// content is joined by newline in store order and substituted into the named
// slots; extraVars supplies additional caller placeholders (caller values
// win on slot-name collision).
//
// A template referencing an unknown placeholder is returned unmodified; the
// condition is logged, never raised, so a broken template degrades to its
// literal text.
func (s *Store) BuildPrompt(template string, extraVars map[string]string) string {
	vars := make(map[string]string, len(slotByType)+1+len(extraVars))
	for _, slot := range slotByType {
		vars[slot] = ""
	}

	var joined = make(map[types.ContextType][]string)
	for _, it := range s.items {
		joined[it.Type] = append(joined[it.Type], it.Content)
	}
	for typ, slot := range slotByType {
		vars[slot] = strings.Join(joined[typ], "\n")
	}
	vars[SlotTokenCount] = strconv.Itoa(s.TotalCost())
	for k, v := range extraVars {
		vars[k] = v
	}

	// Validate before substituting: one unknown placeholder degrades the
	// whole render to the literal template.
	for _, match := range placeholderRe.FindAllStringSubmatch(template, -1) {
		if _, ok := vars[match[1]]; !ok {
			err := types.NewError(types.ErrTemplateVar, "unknown placeholder: "+match[1])
			s.logger.Warn("degrading to literal template",
				zap.String("placeholder", match[1]),
				zap.Error(err))
			return template
		}
	}

	return placeholderRe.ReplaceAllStringFunc(template, func(m string) string {
		name := m[1 : len(m)-1]
		return vars[name]
	})
}
