package layout

// CreatePlan is the ordered sequence of steps an external actuator
// would run to realize a validated layout. This core only describes the
// steps; it never executes them.
type CreatePlan struct {
	Steps []PlanStep `json:"steps"`
}

type PlanStep struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Command     string `json:"command"`
	Destructive bool   `json:"destructive"`
}

func (p *CreatePlan) add(id, description, command string, destructive bool) {
	p.Steps = append(p.Steps, PlanStep{
		ID:          id,
		Description: description,
		Command:     command,
		Destructive: destructive,
	})
}
