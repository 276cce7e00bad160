// Package model holds value types shared between the biz and data layers.
package model

// BudgetStatus is the read-only spend snapshot supplied by the budget
// provider. BudgetUtilization is in [0,1].
type BudgetStatus struct {
	RemainingBudget   float64
	BudgetUtilization float64
	TotalBudget       float64
}

// ModelConstraints narrows the model search during failover.
type ModelConstraints struct {
	// MaxCost is the maximum cost per 1K tokens; zero means unconstrained.
	MaxCost float64
	// PrioritizeSpeed prefers lower-latency models over higher-quality ones.
	PrioritizeSpeed bool
}

// ModelSelection is the model selector's answer.
type ModelSelection struct {
	Model         string
	EstimatedCost float64
	Reason        string
}

// FallbackResponse is a degraded answer served without calling the AI backend.
type FallbackResponse struct {
	Content string
	// Source names where the answer came from: "cache", "knowledge_base"
	// or "template".
	Source string
}
