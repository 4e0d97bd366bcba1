// PropertyPulse - Listings Marketplace Interaction Analytics
// Copyright 2026 Castminster Developers
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/castminster/propertypulse

package services

import (
	"context"
	"errors"
	"fmt"
)

// Runner is a blocking Run-until-canceled component, such as the aggregation
// scheduler.
type Runner interface {
	Run(ctx context.Context) error
}

// SchedulerService runs the daily aggregation scheduler under supervision.
type SchedulerService struct {
	runner Runner
	name   string
}

// NewSchedulerService wraps runner. name shows up in supervisor logs.
func NewSchedulerService(runner Runner, name string) *SchedulerService {
	if name == "" {
		name = "scheduler"
	}
	return &SchedulerService{runner: runner, name: name}
}

// Serve implements suture.Service.
func (s *SchedulerService) Serve(ctx context.Context) error {
	err := s.runner.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s failed: %w", s.name, err)
	}
	return ctx.Err()
}

func (s *SchedulerService) String() string {
	return s.name
}
