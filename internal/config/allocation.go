package config

import (
	"fmt"
	"os"

	"github.com/vitos/portfolio_sim/internal/domain"
	"gopkg.in/yaml.v3"
)

// AllocationFile is a target allocation as written by the upstream decision
// process. JSON documents decode too since they are valid YAML.
type AllocationFile struct {
	Positions   []domain.AllocationTarget    `yaml:"positions"`
	Constraints *domain.PortfolioConstraints `yaml:"constraints,omitempty"`
}

// LoadAllocationFile reads and validates an allocation document.
func LoadAllocationFile(path string) (*domain.TargetAllocation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseAllocation(data)
}

func ParseAllocation(data []byte) (*domain.TargetAllocation, error) {
	var doc AllocationFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidAllocation, err)
	}

	alloc := &domain.TargetAllocation{Positions: doc.Positions}
	if err := alloc.Validate(); err != nil {
		return nil, err
	}
	if doc.Constraints != nil {
		if err := alloc.CheckConstraints(*doc.Constraints); err != nil {
			return nil, err
		}
	}
	return alloc.Normalize(), nil
}
