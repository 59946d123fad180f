package study

// RulableEntity is the category of live data a rule condition list is scoped
// to. The declaration order is the evaluation order: condition groups for a
// later entity may reference results of groups for an earlier entity, so the
// evaluator must walk them in this exact order.
type RulableEntity int

const (
	EntityScope RulableEntity = iota
	EntityEvent
	EntityDataset
	EntityField
	EntityForm
	EntityWorkflow
)

// RulableEntities lists all entities in evaluation order.
var RulableEntities = []RulableEntity{
	EntityScope, EntityEvent, EntityDataset, EntityField, EntityForm, EntityWorkflow,
}

func (e RulableEntity) String() string {
	switch e {
	case EntityScope:
		return "SCOPE"
	case EntityEvent:
		return "EVENT"
	case EntityDataset:
		return "DATASET"
	case EntityField:
		return "FIELD"
	case EntityForm:
		return "FORM"
	case EntityWorkflow:
		return "WORKFLOW"
	default:
		return "UNKNOWN"
	}
}

// ConditionMode combines the results of sibling conditions.
type ConditionMode string

const (
	ModeAnd ConditionMode = "AND"
	ModeOr  ConditionMode = "OR"
)

// BreakType controls short-circuit propagation when a condition fails.
// NONE keeps evaluating siblings; ALLOW stops evaluation declaring the whole
// constraint valid; BLOCK stops evaluation declaring it invalid.
type BreakType string

const (
	BreakNone  BreakType = "NONE"
	BreakAllow BreakType = "ALLOW"
	BreakBlock BreakType = "BLOCK"
)

// RuleConditionCriterion is the test carried by a condition node: either a
// property with an operator and candidate values, a property alone (a
// relation traversal), or a reference to another condition's result.
type RuleConditionCriterion struct {
	Property    string
	Operator    Operator
	Values      []string
	ConditionID string
}

// RuleCondition is one node of a condition tree. Nodes are addressed by ID
// inside their constraint so that criteria and actions can reference the
// result of any previously evaluated node.
type RuleCondition struct {
	ID         string
	Criterion  RuleConditionCriterion
	Inverse    bool
	Dependency bool
	BreakType  BreakType
	Mode       ConditionMode
	Conditions []*RuleCondition
}

// DescendantConditions returns the node's children, recursively.
func (c *RuleCondition) DescendantConditions() []*RuleCondition {
	out := make([]*RuleCondition, 0, len(c.Conditions))
	for _, child := range c.Conditions {
		out = append(out, child)
		out = append(out, child.DescendantConditions()...)
	}
	return out
}

// RuleConditionList groups the root conditions scoped to one rulable entity.
type RuleConditionList struct {
	Mode       ConditionMode
	Conditions []*RuleCondition
}

// RuleConstraint maps each rulable entity to its condition list.
type RuleConstraint struct {
	Conditions map[RulableEntity]*RuleConditionList
}

// AllConditions returns every condition of the constraint, in evaluation
// order, depth first.
func (c *RuleConstraint) AllConditions() []*RuleCondition {
	var out []*RuleCondition
	for _, entity := range RulableEntities {
		list, ok := c.Conditions[entity]
		if !ok {
			continue
		}
		for _, condition := range list.Conditions {
			out = append(out, condition)
			out = append(out, condition.DescendantConditions()...)
		}
	}
	return out
}

// DependencyConditions returns the conditions flagged as dependencies, whose
// resolved evaluables are recorded for change detection.
func (c *RuleConstraint) DependencyConditions() []*RuleCondition {
	var out []*RuleCondition
	for _, condition := range c.AllConditions() {
		if condition.Dependency {
			out = append(out, condition)
		}
	}
	return out
}

// RuleActionParameter feeds one named argument to an action. A parameter is
// resolved from, in order of precedence: the evaluables of a rulable entity,
// the result of a condition, or a literal value (possibly a formula).
type RuleActionParameter struct {
	ID            string
	RulableEntity *RulableEntity
	ConditionID   string
	Value         string
}

// RuleAction triggers a side effect once the owning rule's constraint holds.
// Exactly one of ConfigurationActionID (replay another workflow action's
// rules), StaticActionID (registry-level action) or ActionID (entity-level
// action applied to each target evaluable) is set.
type RuleAction struct {
	ID                      string
	Labels                  map[string]string
	Optional                bool
	ConfigurationWorkflowID string
	ConfigurationActionID   string
	StaticActionID          string
	RulableEntity           *RulableEntity
	ConditionID             string
	ActionID                string
	Parameters              []RuleActionParameter
}

// Rule binds a constraint to a list of actions.
type Rule struct {
	Description string
	Constraint  *RuleConstraint
	Actions     []RuleAction
	Message     map[string]string
	Tags        []string
}

// Trigger names the study-level hook points where configured rules fire.
type Trigger string

const (
	TriggerUpdateValue          Trigger = "UPDATE_VALUE"
	TriggerCreateDataset        Trigger = "CREATE_DATASET"
	TriggerRemoveDataset        Trigger = "REMOVE_DATASET"
	TriggerRestoreDataset       Trigger = "RESTORE_DATASET"
	TriggerCreateWorkflowStatus Trigger = "CREATE_WORKFLOW_STATUS"
)
