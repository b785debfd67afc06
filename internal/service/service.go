package service

import (
	"sync"

	"github.com/xiaot623/gogo/await/internal/config"
	store "github.com/xiaot623/gogo/await/internal/repository"
	"github.com/xiaot623/gogo/await/internal/policy"
	"github.com/xiaot623/gogo/await/internal/runtime"
)

type Service struct {
	store        store.Store
	controller   *runtime.Controller
	config       *config.Config
	policyEngine *policy.Engine

	drives sync.WaitGroup
}

func New(store store.Store, controller *runtime.Controller, cfg *config.Config, policyEngine *policy.Engine) *Service {
	return &Service{
		store:        store,
		controller:   controller,
		config:       cfg,
		policyEngine: policyEngine,
	}
}

// Wait blocks until every background drive has returned.
func (s *Service) Wait() {
	s.drives.Wait()
}
