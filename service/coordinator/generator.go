package coordinator

import (
	"fmt"
	"math/rand"

	"github.com/courierkit/dispatch/model"
)

// generator produces replacement tasks from a seeded source so that runs are
// reproducible.
type generator struct {
	rng  *rand.Rand
	next int
}

func newGenerator(seed int64) *generator {
	return &generator{rng: rand.New(rand.NewSource(seed))}
}

// Generate returns a task of the given category, or of a randomly drawn one
// when the category is empty. Urgent and standard are drawn at 40% each,
// bulk at 20%.
func (g *generator) Generate(category model.Category) *model.Task {
	if category == "" {
		switch roll := g.rng.Intn(10); {
		case roll < 4:
			category = model.CategoryUrgent
		case roll < 8:
			category = model.CategoryStandard
		default:
			category = model.CategoryBulk
		}
	}

	g.next++
	task := &model.Task{
		ID:       fmt.Sprintf("P%d", g.next),
		Category: category,
	}
	switch category {
	case model.CategoryUrgent:
		task.Duration, task.Weight, task.Urgency, task.Priority = 3, 4, 10, true
	case model.CategoryBulk:
		task.Duration, task.Weight, task.Urgency = 12, 15, 2
	default:
		task.Category = model.CategoryStandard
		task.Duration, task.Weight, task.Urgency = 7, 8, 5
	}
	return task
}
