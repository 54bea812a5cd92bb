// Package requirement decides whether a set of aggregated assets satisfies
// the asset requirements of an operation.
package requirement

import "github.com/go-api-assets/internal/domain"

// Predicate reports whether one asset qualifies for op.
type Predicate func(op domain.AssetOperation, a domain.AggregatedAsset) bool

// Rule lists the asset types an operation requires and the predicates each
// candidate must pass.
type Rule struct {
	Required   []domain.AssetType
	Predicates []Predicate
}

type Validator struct {
	rules  map[domain.AssetOperation]Rule
	tagged map[domain.AssetType]bool
}

// New builds a validator with the registration and login rules. tagged lists
// the asset types that carry an operation tag.
func New(tagged ...domain.AssetType) *Validator {
	v := &Validator{tagged: make(map[domain.AssetType]bool, len(tagged))}
	for _, t := range tagged {
		v.tagged[t] = true
	}
	v.rules = map[domain.AssetOperation]Rule{
		domain.OperationRegistration: {
			Required: []domain.AssetType{domain.AssetTypeEmail},
			Predicates: []Predicate{
				v.tagMatchesIfTagged,
				isVerified,
				not(isLinked),
				not(isExpired),
			},
		},
		domain.OperationLogin: {
			Required: []domain.AssetType{domain.AssetTypeEmail},
			Predicates: []Predicate{
				v.isTagged,
				tagMatches,
				isVerified,
				isLinked,
				not(isExpired),
				not(isUsed),
			},
		},
	}
	return v
}

// Validate reports whether every type required by op is satisfied by a
// distinct asset. Unknown operations never validate.
func (v *Validator) Validate(op domain.AssetOperation, assets []domain.AggregatedAsset) bool {
	rule, ok := v.rules[op]
	if !ok || len(rule.Required) == 0 {
		return false
	}
	taken := make([]bool, len(assets))
	for _, t := range rule.Required {
		found := false
		for i, a := range assets {
			if taken[i] || a.Type != t || !passes(rule.Predicates, op, a) {
				continue
			}
			taken[i] = true
			found = true
			break
		}
		if !found {
			return false
		}
	}
	return true
}

func passes(preds []Predicate, op domain.AssetOperation, a domain.AggregatedAsset) bool {
	for _, p := range preds {
		if !p(op, a) {
			return false
		}
	}
	return true
}

func (v *Validator) isTagged(_ domain.AssetOperation, a domain.AggregatedAsset) bool {
	return v.tagged[a.Type] && a.Data.Operation != ""
}

func (v *Validator) tagMatchesIfTagged(op domain.AssetOperation, a domain.AggregatedAsset) bool {
	return !v.tagged[a.Type] || a.Data.Operation == op
}

func tagMatches(op domain.AssetOperation, a domain.AggregatedAsset) bool {
	return a.Data.Operation == op
}

func isVerified(_ domain.AssetOperation, a domain.AggregatedAsset) bool {
	return a.Status == domain.AssetStatusVerified
}

func isLinked(_ domain.AssetOperation, a domain.AggregatedAsset) bool  { return a.IsLinked }
func isExpired(_ domain.AssetOperation, a domain.AggregatedAsset) bool { return a.IsExpired }
func isUsed(_ domain.AssetOperation, a domain.AggregatedAsset) bool    { return a.IsUsed }

func not(p Predicate) Predicate {
	return func(op domain.AssetOperation, a domain.AggregatedAsset) bool { return !p(op, a) }
}
