package common

const (
	ComponentPlanner         = "planner"
	ComponentFetchWorker     = "fetch-worker"
	ComponentScheduler       = "scheduler"
	ComponentReorgHandler    = "reorg-handler"
	ComponentCheckpointStore = "checkpoint-store"
	ComponentFanout          = "fanout"
	ComponentHotReload       = "hot-reload"
	ComponentAPI             = "api"
	ComponentPipeline        = "pipeline"
	ComponentCore            = "core"
)

var AllComponents = map[string]struct{}{
	ComponentPlanner:         {},
	ComponentFetchWorker:     {},
	ComponentScheduler:       {},
	ComponentReorgHandler:    {},
	ComponentCheckpointStore: {},
	ComponentFanout:          {},
	ComponentHotReload:       {},
	ComponentAPI:             {},
	ComponentPipeline:        {},
	ComponentCore:            {},
}
