package observability

const (
	AttrServiceName     = "service.name"
	AttrServiceVersion  = "service.version"
	AttrRunID           = "run.id"
	AttrStepIndex       = "step.index"
	AttrActionName      = "action.name"
	AttrActionStatus    = "action.status"
	AttrLLMModel        = "llm.model"
	AttrLLMTokensInput  = "llm.tokens.input"
	AttrLLMTokensOutput = "llm.tokens.output"
	AttrPageURL         = "page.url"
	AttrErrorType       = "error.type"
	AttrStatusCode      = "http.status_code"

	SpanAgentRun      = "agent.run"
	SpanAgentStep     = "agent.step"
	SpanLLMRequest    = "agent.llm_request"
	SpanActionExecute = "agent.action_execute"
	SpanSnapshot      = "agent.snapshot"
	SpanMemorySearch  = "agent.memory_search"
	SpanHTTPRequest   = "http.request"

	DefaultServiceName  = "argus"
	DefaultSamplingRate = 1.0
	DefaultOTLPEndpoint = "localhost:4317"
	DefaultMetricsPath  = "/metrics"
)
