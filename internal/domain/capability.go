package domain

import (
	"errors"
	"strings"
)

// Placeholders recognised in a capability prompt template.
const (
	PlaceholderInput = "{input}"
	PlaceholderStory = "{story}"
)

// Capability is a named specialization a request can be routed to.
type Capability struct {
	Name           string
	Description    string
	PromptTemplate string
	// Keywords drive the oracle-free fallback classifier.
	Keywords []string
	// UsesStory replays the thread's memory window into the handler prompt.
	UsesStory bool
}

// Validate checks the fields every capability must declare.
func (c Capability) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Name) == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if strings.TrimSpace(c.Description) == "" {
		errs = append(errs, errors.New("description is required"))
	}
	if strings.TrimSpace(c.PromptTemplate) == "" {
		errs = append(errs, errors.New("prompt template is required"))
	} else if !strings.Contains(c.PromptTemplate, PlaceholderInput) {
		errs = append(errs, errors.New("prompt template must contain "+PlaceholderInput))
	}
	return errors.Join(errs...)
}
