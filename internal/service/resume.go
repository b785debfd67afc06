package service

import (
	"context"
	"fmt"
	"log"

	"github.com/xiaot623/gogo/await/internal/domain"
	"github.com/xiaot623/gogo/await/internal/policy"
	"github.com/xiaot623/gogo/await/internal/runtime"
)

// Resume submits a resume signal for an awaiting run and continues it.
func (s *Service) Resume(ctx context.Context, runID string, req domain.ResumeRequest) (*domain.Run, error) {
	if req.Message.IsEmpty() {
		return nil, fmt.Errorf("%w: message.parts is required", runtime.ErrInvalidInput)
	}

	run, err := s.controller.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run.Status != domain.RunStatusAwaiting || run.Await == nil {
		return nil, fmt.Errorf("run %s is %s, not awaiting: %w", runID, run.Status, runtime.ErrInvalidState)
	}

	if s.policyEngine != nil {
		decision, err := s.policyEngine.Evaluate(ctx, resumeInput(run, req))
		if err != nil {
			return nil, fmt.Errorf("failed to evaluate resume policy: %w", err)
		}
		if !decision.Allowed() {
			log.Printf("WARN: resume of run %s denied: %s", runID, decision.Reason)
			return nil, fmt.Errorf("%w: %s", runtime.ErrResumeDenied, decision.Reason)
		}
	}

	run, err = s.controller.SubmitResume(ctx, runID, domain.ResumeSignal{
		RunID:       runID,
		AwaitID:     req.AwaitID,
		Message:     req.Message,
		SubmittedBy: req.SubmittedBy,
	})
	if err != nil {
		return nil, err
	}
	log.Printf("INFO: run %s resumed", runID)

	return s.dispatch(ctx, run)
}

func resumeInput(run *domain.Run, req domain.ResumeRequest) policy.ResumeInput {
	in := policy.ResumeInput{
		RunID:       run.RunID,
		AgentName:   run.AgentName,
		AwaitID:     run.Await.AwaitID,
		SubmittedBy: req.SubmittedBy,
		Text:        req.Message.Text(),
		Parts:       len(req.Message.Parts),
	}
	for _, p := range req.Message.Parts {
		if !p.IsText() {
			in.NonTextParts++
		}
	}
	return in
}
