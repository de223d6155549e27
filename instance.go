package federation

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/viccon/sturdyc"
)

// APubJSONContentType is the content type for activity documents on the wire.
const APubJSONContentType = "application/activity+json"

// InstanceSettings holds the process-wide federation configuration. The zero
// value is not usable; start from DefaultInstanceSettings.
type InstanceSettings struct {
	// RequestTimeout bounds every outbound fetch and delivery.
	RequestTimeout time.Duration
	// AllowedDomains, when non-empty, restricts outbound requests to the
	// listed hosts. BlockedDomains wins over AllowedDomains.
	AllowedDomains []string
	BlockedDomains []string
	// WorkerCount bounds concurrent outbound deliveries.
	WorkerCount int
	// MaxRedirects bounds redirect following during object fetch.
	MaxRedirects int
	// MaxResolveDepth caps explicit traversal of nested object references.
	MaxResolveDepth int

	CacheTTL      time.Duration
	CacheCapacity int
}

// DefaultInstanceSettings returns the settings used when none are provided.
func DefaultInstanceSettings() InstanceSettings {
	return InstanceSettings{
		RequestTimeout:  10 * time.Second,
		WorkerCount:     8,
		MaxRedirects:    3,
		MaxResolveDepth: 2,
		CacheTTL:        10 * time.Minute,
		CacheCapacity:   10_000,
	}
}

const cacheShards = 256

// LocalInstance is the shared federation context: hostname identity, HTTP
// client, settings, and the resolution cache. It is immutable after
// construction and safe for concurrent use from many in-flight requests.
type LocalInstance struct {
	hostname string
	client   *http.Client
	settings InstanceSettings
	cache    *sturdyc.Client[any]
}

// NewLocalInstance builds the process-wide instance context. It never fails;
// connectivity problems surface at call sites.
func NewLocalInstance(hostname string, client *http.Client, settings InstanceSettings) *LocalInstance {
	if client == nil {
		client = http.DefaultClient
	}
	if settings.RequestTimeout <= 0 {
		settings.RequestTimeout = DefaultInstanceSettings().RequestTimeout
	}
	if settings.WorkerCount <= 0 {
		settings.WorkerCount = DefaultInstanceSettings().WorkerCount
	}
	if settings.MaxRedirects <= 0 {
		settings.MaxRedirects = DefaultInstanceSettings().MaxRedirects
	}
	if settings.MaxResolveDepth <= 0 {
		settings.MaxResolveDepth = DefaultInstanceSettings().MaxResolveDepth
	}
	if settings.CacheTTL <= 0 {
		settings.CacheTTL = DefaultInstanceSettings().CacheTTL
	}
	if settings.CacheCapacity <= 0 {
		settings.CacheCapacity = DefaultInstanceSettings().CacheCapacity
	}

	return &LocalInstance{
		hostname: hostname,
		client:   client,
		settings: settings,
		cache:    sturdyc.New[any](settings.CacheCapacity, cacheShards, settings.CacheTTL, 10),
	}
}

func (i *LocalInstance) Hostname() string { return i.hostname }

func (i *LocalInstance) Client() *http.Client { return i.client }

func (i *LocalInstance) Settings() InstanceSettings { return i.settings }

// IsLocal reports whether the URL authority matches this instance.
func (i *LocalInstance) IsLocal(u *url.URL) bool {
	return u != nil && strings.EqualFold(u.Host, i.hostname)
}

// DomainAllowed applies the configured allow/block lists to a remote host.
// An empty allow list means every domain that is not blocked is allowed.
func (i *LocalInstance) DomainAllowed(host string) bool {
	for _, blocked := range i.settings.BlockedDomains {
		if strings.EqualFold(host, blocked) {
			return false
		}
	}
	if len(i.settings.AllowedDomains) == 0 {
		return true
	}
	for _, allowed := range i.settings.AllowedDomains {
		if strings.EqualFold(host, allowed) {
			return true
		}
	}
	return false
}
