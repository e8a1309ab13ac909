package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fangligamedev/OiiLike/pkg/blackboard"
)

// testsPerSuite is the number of checks the inquisitor reports per script.
const testsPerSuite = 3

// HandlerFor returns the built-in handler for role. delay simulates the time
// spent on each task and is interrupted by context cancellation.
func HandlerFor(role blackboard.AgentRole, delay time.Duration) (Handler, error) {
	var h Handler
	switch role {
	case blackboard.AgentVoidShaper:
		h = GenerateImage
	case blackboard.AgentCodeWeaver:
		h = WriteCode
	case blackboard.AgentInquisitor:
		h = RunTest
	case blackboard.AgentProducer:
		h = Review
	default:
		return nil, fmt.Errorf("no built-in handler for agent role %q", role)
	}

	if delay <= 0 {
		return h, nil
	}
	return withDelay(delay, h), nil
}

func withDelay(delay time.Duration, next Handler) Handler {
	return func(ctx context.Context, task blackboard.Task, board *blackboard.Blackboard) (map[string]any, error) {
		timer := time.NewTimer(delay)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
		return next(ctx, task, board)
	}
}

// GenerateImage produces a texture reference for generate_image tasks and
// publishes it under the textures category.
func GenerateImage(ctx context.Context, task blackboard.Task, board *blackboard.Blackboard) (map[string]any, error) {
	if task.Kind != blackboard.TaskKindGenerateImage {
		return nil, unsupported(task)
	}

	name := assetName(task, "asset")
	path := fmt.Sprintf("res://assets/%s.png", name)

	if err := board.UpdateResourceAs(ctx, blackboard.AgentVoidShaper, blackboard.CategoryTextures, name, path); err != nil {
		return nil, fmt.Errorf("failed to record texture: %w", err)
	}

	return map[string]any{"path": path, "name": name}, nil
}

// WriteCode produces a GDScript for write_code tasks, preloading the texture
// of the same name when one is already on the blackboard.
func WriteCode(ctx context.Context, task blackboard.Task, board *blackboard.Blackboard) (map[string]any, error) {
	if task.Kind != blackboard.TaskKindWriteCode {
		return nil, unsupported(task)
	}

	name := assetName(task, "script")
	requirement, _ := task.Input["requirement"].(string)

	var b strings.Builder
	b.WriteString("extends RigidBody2D\n\n")
	if requirement != "" {
		fmt.Fprintf(&b, "# %s\n", strings.ReplaceAll(requirement, "\n", " "))
	}
	if texture, ok := board.GetResource(blackboard.CategoryTextures, name); ok {
		fmt.Fprintf(&b, "const TEXTURE = preload(%q)\n\n", texture)
	}
	b.WriteString("func _ready():\n    mass = 2.0\n")
	code := b.String()

	path := fmt.Sprintf("res://scripts/%s.gd", name)
	if err := board.UpdateResourceAs(ctx, blackboard.AgentCodeWeaver, blackboard.CategoryScripts, name, path); err != nil {
		return nil, fmt.Errorf("failed to record script: %w", err)
	}

	return map[string]any{"code": code, "path": path, "name": name}, nil
}

// RunTest checks the script carried by a run_test task and records the result.
// A script that fails the checks is still a completed task with passed=false.
func RunTest(ctx context.Context, task blackboard.Task, board *blackboard.Blackboard) (map[string]any, error) {
	if task.Kind != blackboard.TaskKindRunTest {
		return nil, unsupported(task)
	}

	code, _ := task.Input["code"].(string)
	if code == "" {
		return nil, fmt.Errorf("run_test task %s has no code to test", task.ID)
	}

	passed := 0
	if strings.HasPrefix(code, "extends ") {
		passed++
	}
	if strings.Contains(code, "func _ready()") {
		passed++
	}
	if !strings.Contains(code, "\t") {
		passed++
	}
	ok := passed == testsPerSuite

	name := assetName(task, "script")
	result := fmt.Sprintf("%d/%d passed", passed, testsPerSuite)
	if err := board.UpdateResourceAs(ctx, blackboard.AgentInquisitor, blackboard.CategoryTestResults, name, result); err != nil {
		return nil, fmt.Errorf("failed to record test result: %w", err)
	}

	return map[string]any{"passed": ok, "tests": testsPerSuite, "passed_count": passed}, nil
}

// Review accepts the work when the tests passed and rejects it otherwise.
func Review(ctx context.Context, task blackboard.Task, board *blackboard.Blackboard) (map[string]any, error) {
	if task.Kind != blackboard.TaskKindReview {
		return nil, unsupported(task)
	}

	passed, _ := task.Input["tests_passed"].(bool)
	if !passed {
		return nil, fmt.Errorf("review rejected: tests did not pass")
	}

	return map[string]any{"approved": true}, nil
}

func assetName(task blackboard.Task, fallback string) string {
	if name, ok := task.Input["name"].(string); ok && name != "" {
		return name
	}
	return fallback
}

func unsupported(task blackboard.Task) error {
	return fmt.Errorf("unsupported task kind %q for %s", task.Kind, task.AssignedAgent)
}
