package votingengine

import (
	"log/slog"
	"time"

	httpadapter "agora/contexts/civic-participation/voting-engine/adapters/http"
	"agora/contexts/civic-participation/voting-engine/adapters/memory"
	"agora/contexts/civic-participation/voting-engine/application/commands"
	"agora/contexts/civic-participation/voting-engine/application/queries"
	"agora/contexts/civic-participation/voting-engine/domain/entities"
	"agora/contexts/civic-participation/voting-engine/domain/tally"
	"agora/contexts/civic-participation/voting-engine/ports"
)

type Module struct {
	Handler   httpadapter.Handler
	Lifecycle commands.LifecycleUseCase
	Submit    commands.SubmitUseCase
	Results   queries.ResultsUseCase
	Store     *memory.Store
}

type Dependencies struct {
	Events       ports.EventRepository
	Ballots      ports.BallotStore
	Results      ports.ResultRepository
	Outbox       ports.OutboxWriter
	Clock        ports.Clock
	IDGen        ports.IDGenerator
	TallyTimeout time.Duration
	Logger       *slog.Logger
}

func NewModule(deps Dependencies) Module {
	engine := tally.Engine{Timeout: deps.TallyTimeout}
	lifecycle := commands.LifecycleUseCase{
		Events:  deps.Events,
		Ballots: deps.Ballots,
		Results: deps.Results,
		Engine:  engine,
		Outbox:  deps.Outbox,
		Clock:   deps.Clock,
		IDGen:   deps.IDGen,
		Logger:  deps.Logger,
	}
	submit := commands.SubmitUseCase{
		Events:  deps.Events,
		Ballots: deps.Ballots,
		Outbox:  deps.Outbox,
		Clock:   deps.Clock,
		IDGen:   deps.IDGen,
		Logger:  deps.Logger,
	}
	results := queries.ResultsUseCase{
		Events:  deps.Events,
		Ballots: deps.Ballots,
		Results: deps.Results,
		Engine:  engine,
		Clock:   deps.Clock,
	}
	return Module{
		Handler: httpadapter.Handler{
			Lifecycle: lifecycle,
			Ballots:   submit,
			Results:   results,
			Logger:    deps.Logger,
		},
		Lifecycle: lifecycle,
		Submit:    submit,
		Results:   results,
	}
}

func NewInMemoryModule(seed []entities.VoteEvent, logger *slog.Logger) Module {
	store := memory.NewStore(seed)
	module := NewModule(Dependencies{
		Events:  store,
		Ballots: store,
		Results: store,
		Outbox:  store,
		Clock:   store,
		IDGen:   store,
		Logger:  logger,
	})
	module.Store = store
	return module
}
