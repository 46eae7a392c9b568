package parser

import (
	"regexp"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"go.uber.org/zap"
)

// IDPlaceholder replaces trailing identifier segments during lookup
const IDPlaceholder = "{id}"

var (
	trailingNumeric = regexp.MustCompile(`/\d+$`)
	trailingParam   = regexp.MustCompile(`/\{[^/{}]+\}$`)
)

var (
	loginPatterns    = []string{"login", "signin", "sign-in", "authenticate", "session"}
	registerPatterns = []string{"register", "signup", "sign-up", "account"}
)

// Endpoint is the resolved contract metadata for one method and path template
type Endpoint struct {
	Method          string
	PathTemplate    string
	Summary         string
	Description     string
	RequiresAuth    bool
	RequestSchema   *openapi3.Schema
	ResponseSchemas map[string]*openapi3.Schema
}

// Key returns the registry key of the endpoint
func (e *Endpoint) Key() string {
	return endpointKey(e.Method, e.PathTemplate)
}

// AuthEndpoints holds the login and register paths found by auto-discovery
type AuthEndpoints struct {
	Login    string
	Register string
}

// BuildOptions controls registry construction
type BuildOptions struct {
	AutoDiscovery bool
	Logger        *zap.Logger
}

// Registry maps normalized method and path keys to endpoint descriptors
type Registry struct {
	doc        *Document
	endpoints  map[string]*Endpoint
	protected  map[string]struct{}
	discovered AuthEndpoints
}

// Build walks every operation of the document and records its descriptor.
// Schema problems degrade to a nil schema on the affected endpoint.
func Build(doc *Document, opts BuildOptions) *Registry {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	r := &Registry{
		doc:       doc,
		endpoints: make(map[string]*Endpoint),
		protected: make(map[string]struct{}),
	}

	for _, part := range doc.Skipped() {
		log.Warn("skipped malformed contract entry", zap.String("entry", part))
	}

	paths := doc.paths.Map()
	keys := make([]string, 0, len(paths))
	for path := range paths {
		keys = append(keys, path)
	}
	sort.Strings(keys)

	for _, path := range keys {
		pathItem := paths[path]
		if pathItem == nil {
			continue
		}
		methods := pathItem.Operations()
		names := make([]string, 0, len(methods))
		for method := range methods {
			names = append(names, method)
		}
		sort.Strings(names)

		for _, method := range names {
			operation := methods[method]
			if operation == nil {
				continue
			}
			endpoint := &Endpoint{
				Method:          strings.ToUpper(method),
				PathTemplate:    path,
				Summary:         operation.Summary,
				Description:     operation.Description,
				RequiresAuth:    requiresAuth(operation),
				RequestSchema:   r.requestSchema(operation),
				ResponseSchemas: r.responseSchemas(operation),
			}
			r.add(endpoint)

			if opts.AutoDiscovery {
				r.discover(endpoint, log)
			}
		}
	}

	log.Debug("endpoint registry built",
		zap.Int("endpoints", len(r.Endpoints())),
		zap.Int("protected", len(r.protected)))
	return r
}

func (r *Registry) add(endpoint *Endpoint) {
	key := endpoint.Key()
	r.endpoints[key] = endpoint
	if endpoint.RequiresAuth {
		r.protected[key] = struct{}{}
	}

	// A trailing {orderId} is also reachable through the {id} placeholder.
	canonical := endpointKey(endpoint.Method, trailingParam.ReplaceAllString(endpoint.PathTemplate, "/"+IDPlaceholder))
	if _, exists := r.endpoints[canonical]; !exists {
		r.endpoints[canonical] = endpoint
		if endpoint.RequiresAuth {
			r.protected[canonical] = struct{}{}
		}
	}
}

func (r *Registry) discover(endpoint *Endpoint, log *zap.Logger) {
	if endpoint.Method != "POST" {
		return
	}
	text := strings.ToLower(endpoint.PathTemplate + " " + endpoint.Summary + " " + endpoint.Description)

	switch {
	case r.discovered.Register == "" && containsAny(text, registerPatterns):
		r.discovered.Register = endpoint.PathTemplate
		log.Debug("auto-discovered register endpoint", zap.String("path", endpoint.PathTemplate))
	case r.discovered.Login == "" && containsAny(text, loginPatterns):
		r.discovered.Login = endpoint.PathTemplate
		log.Debug("auto-discovered login endpoint", zap.String("path", endpoint.PathTemplate))
	}
}

// requiresAuth is true when the operation declares at least one non-empty requirement
func requiresAuth(operation *openapi3.Operation) bool {
	if operation.Security == nil {
		return false
	}
	for _, requirement := range *operation.Security {
		if len(requirement) > 0 {
			return true
		}
	}
	return false
}

func (r *Registry) requestSchema(operation *openapi3.Operation) *openapi3.Schema {
	if operation.RequestBody == nil || operation.RequestBody.Value == nil {
		return nil
	}
	media := jsonMedia(operation.RequestBody.Value.Content)
	if media == nil {
		return nil
	}
	return r.doc.Resolve(media.Schema)
}

func (r *Registry) responseSchemas(operation *openapi3.Operation) map[string]*openapi3.Schema {
	schemas := make(map[string]*openapi3.Schema)
	if operation.Responses == nil {
		return schemas
	}
	for status, response := range operation.Responses.Map() {
		if response == nil || response.Value == nil {
			continue
		}
		media := jsonMedia(response.Value.Content)
		if media == nil {
			continue
		}
		if schema := r.doc.Resolve(media.Schema); schema != nil {
			schemas[status] = schema
		}
	}
	return schemas
}

// jsonMedia prefers application/json and falls back to any +json media type
func jsonMedia(content openapi3.Content) *openapi3.MediaType {
	if media, ok := content["application/json"]; ok && media != nil {
		return media
	}
	types := make([]string, 0, len(content))
	for contentType := range content {
		types = append(types, contentType)
	}
	sort.Strings(types)
	for _, contentType := range types {
		if strings.Contains(contentType, "json") && content[contentType] != nil {
			return content[contentType]
		}
	}
	return nil
}

// Lookup finds the endpoint for a concrete request. A miss means the contract has
// nothing to say about the request.
func (r *Registry) Lookup(method, uri string) (*Endpoint, bool) {
	path := StripQuery(uri)
	method = strings.ToUpper(method)
	if endpoint, ok := r.endpoints[endpointKey(method, path)]; ok {
		return endpoint, true
	}
	endpoint, ok := r.endpoints[endpointKey(method, NormalizePath(path))]
	return endpoint, ok
}

// IsProtected reports whether the request targets an endpoint that requires auth
func (r *Registry) IsProtected(method, uri string) bool {
	endpoint, ok := r.Lookup(method, uri)
	return ok && endpoint.RequiresAuth
}

// Resolve follows one schema reference against the contract components
func (r *Registry) Resolve(ref *openapi3.SchemaRef) *openapi3.Schema {
	return r.doc.Resolve(ref)
}

// Discovered returns the auth endpoints found during Build
func (r *Registry) Discovered() AuthEndpoints {
	return r.discovered
}

// Endpoints returns the distinct descriptors sorted by path then method
func (r *Registry) Endpoints() []*Endpoint {
	seen := make(map[*Endpoint]struct{}, len(r.endpoints))
	out := make([]*Endpoint, 0, len(r.endpoints))
	for _, endpoint := range r.endpoints {
		if _, dup := seen[endpoint]; dup {
			continue
		}
		seen[endpoint] = struct{}{}
		out = append(out, endpoint)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PathTemplate != out[j].PathTemplate {
			return out[i].PathTemplate < out[j].PathTemplate
		}
		return out[i].Method < out[j].Method
	})
	return out
}

// Protected returns the keys of the endpoints that require authentication
func (r *Registry) Protected() []string {
	out := make([]string, 0, len(r.protected))
	for _, endpoint := range r.Endpoints() {
		if endpoint.RequiresAuth {
			out = append(out, endpoint.Key())
		}
	}
	return out
}

// StripQuery drops the query string from uri
func StripQuery(uri string) string {
	if i := strings.IndexByte(uri, '?'); i >= 0 {
		return uri[:i]
	}
	return uri
}

// NormalizePath replaces a single trailing numeric segment with the {id}
// placeholder. Multi-parameter paths and non-numeric identifiers are not handled.
func NormalizePath(uri string) string {
	return trailingNumeric.ReplaceAllString(uri, "/"+IDPlaceholder)
}

func endpointKey(method, path string) string {
	return strings.ToUpper(method) + " " + path
}

func containsAny(s string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
