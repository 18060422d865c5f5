package config

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"
)

//go:embed rule.cue
var ruleSchemaSource string

// schemaValidator checks decoded rule nodes against the embedded CUE schema.
// A cue.Context is not safe for concurrent use, hence the mutex.
type schemaValidator struct {
	mu   sync.Mutex
	ctx  *cue.Context
	rule cue.Value
}

var (
	defaultValidatorOnce sync.Once
	defaultValidator     *schemaValidator
	defaultValidatorErr  error
)

func ruleValidator() (*schemaValidator, error) {
	defaultValidatorOnce.Do(func() {
		defaultValidator, defaultValidatorErr = newSchemaValidator(ruleSchemaSource)
	})
	return defaultValidator, defaultValidatorErr
}

func newSchemaValidator(src string) (*schemaValidator, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(src, cue.Filename("rule.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile rule schema: %w", err)
	}
	rule := schema.LookupPath(cue.ParsePath("#Rule"))
	if err := rule.Err(); err != nil {
		return nil, fmt.Errorf("lookup #Rule: %w", err)
	}
	return &schemaValidator{ctx: ctx, rule: rule}, nil
}

// validate unifies a rule node with #Rule and reports the first mismatches.
func (v *schemaValidator) validate(node *yaml.Node) error {
	var raw any
	if err := node.Decode(&raw); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	data := v.ctx.Encode(raw)
	if err := data.Err(); err != nil {
		return err
	}
	unified := v.rule.Unify(data)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return summarizeCueError(err)
	}
	return nil
}

func summarizeCueError(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	msgs := make([]string, 0, len(errs))
	seen := map[string]struct{}{}
	for _, e := range errs {
		format, args := e.Msg()
		msg := fmt.Sprintf(format, args...)
		if path := e.Path(); len(path) > 0 {
			msg = strings.Join(path, ".") + ": " + msg
		}
		if _, dup := seen[msg]; dup {
			continue
		}
		seen[msg] = struct{}{}
		msgs = append(msgs, msg)
		if len(msgs) == 3 {
			break
		}
	}
	return fmt.Errorf("schema: %s", strings.Join(msgs, "; "))
}
