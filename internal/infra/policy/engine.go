// Package policy evaluates handle claim eligibility through OPA. The
// built-in policy enforces the trajectory requirements; operators can
// point POLICY_PATH at their own Rego to tighten them.
package policy

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/open-policy-agent/opa/rego"
)

const resultQuery = "data.gnsd.handle.result"

// defaultModule is the shipped claim policy. A claim is eligible when
// the chain verifies and the trajectory meets the configured minimums.
const defaultModule = `package gnsd.handle

default allow = false

violations[msg] {
	input.breadcrumb_count < input.requirements.min_breadcrumbs
	msg := "insufficient breadcrumb history"
}

violations[msg] {
	input.trust_score < input.requirements.min_trust_score
	msg := "insufficient trust score"
}

violations[msg] {
	input.account_age_days < input.requirements.min_account_age_days
	msg := "account too new"
}

violations[msg] {
	input.unique_locations < input.requirements.min_unique_locations
	msg := "insufficient location diversity"
}

violations[msg] {
	not input.chain_valid
	msg := "breadcrumb chain failed verification"
}

allow {
	count(violations) == 0
}

result := {"allow": allow, "violations": violations}
`

// ClaimInput is the document the policy evaluates.
type ClaimInput struct {
	Handle          string            `json:"handle"`
	BreadcrumbCount int64             `json:"breadcrumb_count"`
	TrustScore      float64           `json:"trust_score"`
	ChainValid      bool              `json:"chain_valid"`
	AccountAge      time.Duration     `json:"-"`
	AccountAgeDays  float64           `json:"account_age_days"`
	UniqueLocations int64             `json:"unique_locations"`
	Requirements    ClaimRequirements `json:"requirements"`
}

// ClaimRequirements carries the minimums the policy enforces. Zero
// fields are not enforced.
type ClaimRequirements struct {
	MinBreadcrumbs     int64   `json:"min_breadcrumbs"`
	MinTrustScore      float64 `json:"min_trust_score"`
	MinAccountAgeDays  float64 `json:"min_account_age_days"`
	MinUniqueLocations int64   `json:"min_unique_locations"`
}

// Decision is the normalized policy verdict.
type Decision struct {
	Allow      bool     `json:"allow"`
	Violations []string `json:"violations"`
}

type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine prepares the claim policy. An empty policyPath loads the
// built-in module; otherwise the path is loaded as a Rego file or
// bundle directory and must define data.gnsd.handle.result.
func NewEngine(ctx context.Context, policyPath string) (*Engine, error) {
	opts := []func(*rego.Rego){
		rego.Query(resultQuery),
		rego.StrictBuiltinErrors(true),
	}
	if policyPath == "" {
		opts = append(opts, rego.Module("gnsd_handle.rego", defaultModule))
	} else {
		opts = append(opts, rego.Load([]string{policyPath}, nil))
	}

	prepared, err := rego.New(opts...).PrepareForEval(ctx)
	if err != nil {
		return nil, err
	}
	return &Engine{query: prepared}, nil
}

func (e *Engine) Evaluate(ctx context.Context, input ClaimInput) (Decision, error) {
	if e == nil {
		return Decision{}, errors.New("policy engine is nil")
	}
	input.AccountAgeDays = input.AccountAge.Hours() / 24

	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return Decision{}, err
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return Decision{}, errors.New("empty policy result")
	}

	decision, err := decodeDecision(results[0].Expressions[0].Value)
	if err != nil {
		return Decision{}, err
	}
	sort.Strings(decision.Violations)
	return decision, nil
}

func decodeDecision(value any) (Decision, error) {
	payload, err := json.Marshal(value)
	if err != nil {
		return Decision{}, err
	}
	var decision Decision
	if err := json.Unmarshal(payload, &decision); err != nil {
		return Decision{}, err
	}
	return decision, nil
}
