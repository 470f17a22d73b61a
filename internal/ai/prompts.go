package ai

import (
	"fmt"

	"github.com/BuzzLyutic/taskboard/internal/model"
)

const editSystemPrompt = `You revise a single to-do task according to the user's request.
Reply with one JSON object and nothing else. The title is required; description and due_date are optional.

{
  "title": "Updated task title",
  "description": "Updated description",
  "due_date": "YYYY-MM-DD or null"
}`

const extractSystemPrompt = `You find actionable tasks in a document.
Reply with a JSON array only, one object per task, each with a "title" and a "description".

[
  {"title": "First task", "description": "What needs doing"},
  {"title": "Second task", "description": "What needs doing"}
]`

func editUserPrompt(t model.Task, instruction string) string {
	desc := t.Description
	if desc == "" {
		desc = "No description"
	}
	due := "No due date"
	if t.DueDate != nil {
		due = t.DueDate.String()
	}
	return fmt.Sprintf(`Current task:
Title: %s
Description: %s
Due date: %s

Request: %s

Return the updated task as a single JSON object.`, t.Title, desc, due, instruction)
}
