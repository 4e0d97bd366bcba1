// PropertyPulse - Listings Marketplace Interaction Analytics
// Copyright 2026 Castminster Developers
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/castminster/propertypulse

package services

import (
	"context"
	"fmt"
)

// MessageRouter matches the queue router's lifecycle methods.
type MessageRouter interface {
	Run(ctx context.Context) error
	Close() error
}

// RouterService runs the Watermill router under supervision. If the router
// exits with an error the supervisor restarts it, which re-subscribes every
// handler on the durable consumers.
type RouterService struct {
	router MessageRouter
}

// NewRouterService wraps router.
func NewRouterService(router MessageRouter) *RouterService {
	return &RouterService{router: router}
}

// Serve implements suture.Service.
func (s *RouterService) Serve(ctx context.Context) error {
	if err := s.router.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("message router failed: %w", err)
	}
	return ctx.Err()
}

func (s *RouterService) String() string {
	return "message-router"
}
