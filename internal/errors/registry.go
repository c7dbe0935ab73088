package errors

import "sort"

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category Category
	Message  string
	Detail   string
	DocURL   string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Binding Errors (W001-W009)
	// ============================================

	"W001": {
		Category: CategoryBinding,
		Message:  "Binding behavior only supports events",
		Detail:   "The behavior wraps an event listener's call source. It was applied to a binding that has no target event or no call source.",
		DocURL:   "https://weave.dev/docs/errors/W001",
	},
	"W002": {
		Category: CategoryBinding,
		Message:  "Binding behavior only supports property bindings",
		Detail:   "Binding mode behaviors (oneTime, toView, fromView, twoWay) change the mode of a property binding and cannot be applied to other bindings.",
		DocURL:   "https://weave.dev/docs/errors/W002",
	},
	"W003": {
		Category: CategoryBinding,
		Message:  "Expression is not assignable",
		Detail:   "A from-view or two-way binding tried to write the target value back to a source expression that cannot be assigned.",
		DocURL:   "https://weave.dev/docs/errors/W003",
	},
	"W004": {
		Category: CategoryBinding,
		Message:  "Binding is already bound",
		Detail:   "Bind was called twice without an Unbind in between. Unbind the binding before binding it to a new scope.",
		DocURL:   "https://weave.dev/docs/errors/W004",
	},
	"W005": {
		Category: CategoryBinding,
		Message:  "Expression evaluation failed",
		Detail:   "The source expression returned an error while the binding was updating its target.",
		DocURL:   "https://weave.dev/docs/errors/W005",
	},

	// ============================================
	// Scheduler Errors (W010-W019)
	// ============================================

	"W010": {
		Category: CategoryScheduler,
		Message:  "Flush did not settle",
		Detail:   "Subscribers kept mutating observed collections during the flush. This usually means two bindings update each other in a cycle.",
		DocURL:   "https://weave.dev/docs/errors/W010",
	},
	"W011": {
		Category: CategoryScheduler,
		Message:  "Queued write failed",
		Detail:   "A write callback returned an error. The flush stopped; remaining work stays queued for the next flush.",
		DocURL:   "https://weave.dev/docs/errors/W011",
	},

	// ============================================
	// Resource Errors (W020-W029)
	// ============================================

	"W020": {
		Category: CategoryResource,
		Message:  "Resource not found",
		Detail:   "No resource of this kind was registered under the requested name.",
		DocURL:   "https://weave.dev/docs/errors/W020",
	},
	"W021": {
		Category: CategoryResource,
		Message:  "Resource already registered",
		Detail:   "A resource of the same kind and name is already registered.",
		DocURL:   "https://weave.dev/docs/errors/W021",
	},
	"W022": {
		Category: CategoryResource,
		Message:  "Resource type mismatch",
		Detail:   "The registered resource does not implement the requested type.",
		DocURL:   "https://weave.dev/docs/errors/W022",
	},

	// ============================================
	// Store Errors (W030-W039)
	// ============================================

	"W030": {
		Category: CategoryStore,
		Message:  "Action not registered",
		Detail:   "The dispatched action has no registered handler.",
		DocURL:   "https://weave.dev/docs/errors/W030",
	},
	"W031": {
		Category: CategoryStore,
		Message:  "Action handler failed",
		Detail:   "An action handler returned an error. The state was not changed.",
		DocURL:   "https://weave.dev/docs/errors/W031",
	},
	"W032": {
		Category: CategoryStore,
		Message:  "State snapshot failed",
		Detail:   "The state could not be encoded or written to the configured persister.",
		DocURL:   "https://weave.dev/docs/errors/W032",
	},
	"W033": {
		Category: CategoryStore,
		Message:  "State restore failed",
		Detail:   "The snapshot could not be read from the persister or decoded into the state type.",
		DocURL:   "https://weave.dev/docs/errors/W033",
	},

	// ============================================
	// Configuration Errors (W040-W049)
	// ============================================

	"W040": {
		Category: CategoryConfig,
		Message:  "Configuration file not found",
		Detail:   "No weave.json or weave.yaml was found.",
		DocURL:   "https://weave.dev/docs/errors/W040",
	},
	"W041": {
		Category: CategoryConfig,
		Message:  "Invalid configuration file",
		Detail:   "The configuration file could not be parsed.",
		DocURL:   "https://weave.dev/docs/errors/W041",
	},
	"W042": {
		Category: CategoryConfig,
		Message:  "Configuration validation failed",
		Detail:   "One or more configuration values are out of range.",
		DocURL:   "https://weave.dev/docs/errors/W042",
	},

	// ============================================
	// CLI Errors (W050-W059)
	// ============================================

	"W050": {
		Category: CategoryCLI,
		Message:  "Unknown collection kind",
		Detail:   "The --kind flag accepts map, set or array.",
		DocURL:   "https://weave.dev/docs/errors/W050",
	},
}

// Register adds a custom error template.
// This allows extensions to register their own error codes.
func Register(code string, template ErrorTemplate) {
	registry[code] = template
}

// GetAllCodes returns all registered error codes, sorted.
func GetAllCodes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// GetTemplate returns the template for an error code.
func GetTemplate(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}
