package controller

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/BuzzLyutic/taskboard/internal/model"
)

// Palette lists the colors a project may take.
var Palette = []string{"red", "blue", "green", "purple", "yellow", "pink"}

type Project struct {
	ID    string
	Name  string
	Color string
}

// Projects groups tasks for the current session only. A task belongs to at
// most one project.
type Projects struct {
	mu       sync.RWMutex
	projects []Project
	members  map[string]string
}

func NewProjects() *Projects {
	return &Projects{members: make(map[string]string)}
}

func (p *Projects) Add(name, color string) (Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Project{}, fmt.Errorf("%w: project name is required", model.ErrValidation)
	}
	if !slices.Contains(Palette, color) {
		return Project{}, fmt.Errorf("%w: unknown color %q", model.ErrValidation, color)
	}
	pr := Project{ID: uuid.NewString(), Name: name, Color: color}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.projects = append(p.projects, pr)
	return pr, nil
}

func (p *Projects) Remove(id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := p.index(id)
	if i < 0 {
		return fmt.Errorf("%w: project %s", model.ErrNotFound, id)
	}
	p.projects = slices.Delete(p.projects, i, i+1)
	for taskID, projectID := range p.members {
		if projectID == id {
			delete(p.members, taskID)
		}
	}
	return nil
}

// Assign moves a task into a project, leaving any previous one.
func (p *Projects) Assign(taskID, projectID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.index(projectID) < 0 {
		return fmt.Errorf("%w: project %s", model.ErrNotFound, projectID)
	}
	p.members[taskID] = projectID
	return nil
}

func (p *Projects) Unassign(taskID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.members, taskID)
}

func (p *Projects) List() []Project {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Clone(p.projects)
}

func (p *Projects) ProjectOf(taskID string) (Project, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	i := p.index(p.members[taskID])
	if i < 0 {
		return Project{}, false
	}
	return p.projects[i], true
}

// TasksIn keeps the tasks assigned to projectID, in their given order.
func (p *Projects) TasksIn(projectID string, tasks []model.Task) []model.Task {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]model.Task, 0)
	for _, t := range tasks {
		if p.members[t.ID] == projectID {
			out = append(out, t)
		}
	}
	return out
}

func (p *Projects) Unassigned(tasks []model.Task) []model.Task {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]model.Task, 0)
	for _, t := range tasks {
		if _, ok := p.members[t.ID]; !ok {
			out = append(out, t)
		}
	}
	return out
}

func (p *Projects) index(id string) int {
	return slices.IndexFunc(p.projects, func(pr Project) bool { return pr.ID == id })
}
