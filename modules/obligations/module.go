// Package obligations wires the obligation register: repositories, the write-hook bus
// and the services built on them.
package obligations

import (
	"github.com/sirupsen/logrus"

	"github.com/enveng-group/greenova/modules/obligations/domain/aggregates/obligation"
	"github.com/enveng-group/greenova/modules/obligations/domain/entities/mechanism"
	"github.com/enveng-group/greenova/modules/obligations/domain/entities/project"
	"github.com/enveng-group/greenova/modules/obligations/infrastructure/persistence"
	"github.com/enveng-group/greenova/modules/obligations/services"
	"github.com/enveng-group/greenova/pkg/eventbus"
)

type ModuleOptions struct {
	Logger   *logrus.Logger
	Mappings *services.Mappings
	Metrics  *services.ImportMetrics
}

type Module struct {
	Bus eventbus.EventBus

	Projects    project.Repository
	Mechanisms  mechanism.Repository
	Obligations obligation.Repository

	ObligationService *services.ObligationService
	MechanismService  *services.MechanismService
	ImportService     *services.ImportService
}

// NewModule builds the services over the SQL repositories. The mechanism recount is
// subscribed to the bus so single writes keep counters current.
func NewModule(opts ModuleOptions) *Module {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	mappings := services.DefaultMappings()
	if opts.Mappings != nil {
		mappings = *opts.Mappings
	}

	m := &Module{
		Bus:         eventbus.NewEventPublisher(logger),
		Projects:    persistence.NewProjectRepository(),
		Mechanisms:  persistence.NewMechanismRepository(),
		Obligations: persistence.NewObligationRepository(),
	}
	m.MechanismService = services.NewMechanismService(m.Mechanisms, m.Obligations)
	m.MechanismService.Subscribe(m.Bus)
	m.ObligationService = services.NewObligationService(m.Obligations, m.Bus)
	m.ImportService = services.NewImportService(
		m.Projects,
		services.NewNormalizer(mappings, m.Mechanisms),
		m.ObligationService,
		m.Bus,
		m.MechanismService,
	).WithMetrics(opts.Metrics)
	return m
}
