package engine

import (
	"context"
	"fmt"
	"log"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"

	grantdomain "school-admin/backend/internal/grant/domain"
	"school-admin/backend/internal/policy/repository"
)

const defaultPolicyPackage = "schooladmin.access"

// Default Rego policy: access requires the explicit per-service flag AND a
// hierarchy rank at or above the service's requirement. The two conditions
// are conjunctive, never substitutable.
const defaultRegoPolicy = `package schooladmin.access

default has_flag = false
default hierarchy_sufficient = false
default can_access = false

has_flag if {
	input.grant.services[input.service.key] == true
}

hierarchy_sufficient if {
	input.grant.rank <= input.service.required_rank
}

can_access if {
	has_flag
	hierarchy_sufficient
}
`

// OPAEvaluator evaluates service access using OPA Rego. Enabled policies from
// the store override the default rule; evaluation failures fall back to the
// built-in conjunctive check.
type OPAEvaluator struct {
	policyRepo repository.Repository
}

// NewOPAEvaluator returns an OPA-based access evaluator. policyRepo may be
// nil; the evaluator then always uses the default policy.
func NewOPAEvaluator(policyRepo repository.Repository) *OPAEvaluator {
	return &OPAEvaluator{policyRepo: policyRepo}
}

// HealthCheck verifies that the in-process OPA Rego engine can compile and evaluate the default policy.
// Does not call the policy repo or database. Returns nil on success.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	modules := map[string]string{"policy_0.rego": defaultRegoPolicy}
	compiler, err := ast.CompileModules(modules)
	if err != nil {
		return fmt.Errorf("compile default policy: %w", err)
	}
	minimalInput := map[string]interface{}{
		"grant": map[string]interface{}{
			"services": map[string]interface{}{},
			"level":    "",
			"rank":     0,
		},
		"service": map[string]interface{}{
			"key":            "",
			"required_level": "",
			"required_rank":  0,
		},
	}
	q := rego.New(
		rego.Query("data."+defaultPolicyPackage+".can_access"),
		rego.Compiler(compiler),
		rego.Input(minimalInput),
	)
	rs, err := q.Eval(ctx)
	if err != nil {
		return fmt.Errorf("eval default policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return fmt.Errorf("policy query returned no result")
	}
	return nil
}

// EvaluateAccess evaluates service access using OPA Rego policies.
func (e *OPAEvaluator) EvaluateAccess(
	ctx context.Context,
	grant *grantdomain.AccessGrant,
	service *grantdomain.ServiceDefinition,
) (AccessResult, error) {
	if service == nil {
		return AccessResult{}, fmt.Errorf("evaluate access: service is nil")
	}

	input := e.buildInput(grant, service)

	var policies []string
	if e.policyRepo != nil {
		enabled, err := e.policyRepo.ListEnabled(ctx)
		if err != nil {
			log.Printf("policy: failed to load policies: %v", err)
		} else {
			for _, p := range enabled {
				if p.Enabled && p.Rules != "" {
					policies = append(policies, p.Rules)
				}
			}
		}
	}
	if len(policies) == 0 {
		policies = []string{defaultRegoPolicy}
	}

	result, err := e.evaluatePolicies(ctx, policies, input)
	if err != nil {
		log.Printf("policy: evaluation failed: %v, using built-in rule", err)
		return builtinResult(grant, service), nil
	}
	return result, nil
}

func (e *OPAEvaluator) buildInput(grant *grantdomain.AccessGrant, service *grantdomain.ServiceDefinition) map[string]interface{} {
	services := map[string]interface{}{}
	grantMap := map[string]interface{}{
		"services": services,
		"level":    "",
		"rank":     grantdomain.HierarchyLevel("").Rank(),
	}
	if grant != nil {
		for k, v := range grant.Services {
			services[k] = v
		}
		grantMap["level"] = string(grant.HierarchyLevel)
		grantMap["rank"] = grant.HierarchyLevel.Rank()
	}

	return map[string]interface{}{
		"grant": grantMap,
		"service": map[string]interface{}{
			"key":            service.ServiceKey,
			"required_level": string(service.RequiredLevel),
			"required_rank":  service.RequiredLevel.Rank(),
		},
	}
}

func (e *OPAEvaluator) evaluatePolicies(ctx context.Context, policies []string, input map[string]interface{}) (AccessResult, error) {
	modules := make(map[string]string)
	for i, policy := range policies {
		modules[fmt.Sprintf("policy_%d.rego", i)] = policy
	}

	compiler, err := ast.CompileModules(modules)
	if err != nil {
		return AccessResult{}, fmt.Errorf("compile policies: %w", err)
	}

	var out AccessResult

	hasFlag, err := evalBool(ctx, compiler, input, "data."+defaultPolicyPackage+".has_flag")
	if err != nil {
		return AccessResult{}, err
	}
	out.HasFlag = hasFlag

	sufficient, err := evalBool(ctx, compiler, input, "data."+defaultPolicyPackage+".hierarchy_sufficient")
	if err != nil {
		return AccessResult{}, err
	}
	out.HierarchySufficient = sufficient

	canAccess, err := evalBool(ctx, compiler, input, "data."+defaultPolicyPackage+".can_access")
	if err != nil {
		return AccessResult{}, err
	}
	out.CanAccess = canAccess

	return out, nil
}

func evalBool(ctx context.Context, compiler *ast.Compiler, input map[string]interface{}, query string) (bool, error) {
	q := rego.New(
		rego.Query(query),
		rego.Compiler(compiler),
		rego.Input(input),
	)
	rs, err := q.Eval(ctx)
	if err != nil {
		return false, fmt.Errorf("eval %s: %w", query, err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return false, fmt.Errorf("query %s returned no result", query)
	}
	v, ok := rs[0].Expressions[0].Value.(bool)
	if !ok {
		return false, fmt.Errorf("query %s returned non-boolean %T", query, rs[0].Expressions[0].Value)
	}
	return v, nil
}

// builtinResult computes the access rule directly, bypassing Rego. Used when
// policy evaluation fails so a broken override can never grant access wider
// than the default rule.
func builtinResult(grant *grantdomain.AccessGrant, service *grantdomain.ServiceDefinition) AccessResult {
	var out AccessResult
	out.HasFlag = grant.HasFlag(service.ServiceKey)
	if grant != nil {
		out.HierarchySufficient = grant.HierarchyLevel.Sufficient(service.RequiredLevel)
	}
	out.CanAccess = out.HasFlag && out.HierarchySufficient
	return out
}
