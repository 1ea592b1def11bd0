package effect

// Plan collects the tasks produced by one mutation. Adding the same key twice keeps a
// single task carrying the latest payload, so a plan can be enqueued in one statement.
type Plan struct {
	tasks []*Task
	index map[string]int
	err   error
}

// NewPlan creates an empty plan
func NewPlan() *Plan {
	return &Plan{index: make(map[string]int)}
}

// Add plans an effect. The first encoding error is kept and returned by Tasks.
func (p *Plan) Add(entityID string, effectType Type, payload any) *Plan {
	if p.err != nil {
		return p
	}
	t, err := NewTask(entityID, effectType, payload)
	if err != nil {
		p.err = err
		return p
	}
	if i, ok := p.index[t.Key()]; ok {
		p.tasks[i] = t
		return p
	}
	p.index[t.Key()] = len(p.tasks)
	p.tasks = append(p.tasks, t)
	return p
}

// Len returns the number of planned tasks
func (p *Plan) Len() int {
	return len(p.tasks)
}

// Tasks returns the planned tasks in insertion order
func (p *Plan) Tasks() ([]*Task, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.tasks, nil
}
