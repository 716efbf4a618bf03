package vid

import (
	"context"
	"fmt"
	"strings"
)

// Recognised did method names.
const (
	methodWeb   = "web"
	methodPeer  = "peer"
	methodWebvh = "webvh"
)

// Resolver resolves and verifies identifiers whose method needs the
// network (did:web, did:webvh). Callers supply one; no package in this
// module implements it, and the core never performs I/O itself.
type Resolver interface {
	Resolve(ctx context.Context, id string) (*Vid, error)
}

// Verify resolves and verifies an identifier, using offline methods
// where possible and falling back to the resolver for online methods.
// A nil resolver restricts verification to offline methods.
func Verify(ctx context.Context, id string, resolver Resolver) (*Vid, error) {
	method, err := Method(id)
	if err != nil {
		return nil, err
	}

	switch method {
	case methodPeer:
		return VerifyPeer(id)
	case methodWeb, methodWebvh:
		if resolver == nil {
			return nil, fmt.Errorf("%w: %q", ErrUnresolvable, id)
		}
		return resolver.Resolve(ctx, id)
	default:
		return nil, fmt.Errorf("%w: unknown did method in %q", ErrInvalidVid, id)
	}
}

// VerifyOffline verifies an identifier using only offline methods.
func VerifyOffline(id string) (*Vid, error) {
	return Verify(context.Background(), id, nil)
}

// Method extracts the did method name from an identifier.
func Method(id string) (string, error) {
	parts := strings.SplitN(id, ":", 3)
	if len(parts) < 3 || parts[0] != "did" || parts[1] == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidVid, id)
	}
	return parts[1], nil
}

// WebURL maps a did:web identifier to the URL its DID document is
// served from: did:web:<host>[:<path>...]:<name> becomes
// https://<host>/<path>/<name>/did.json.
func WebURL(id string) (string, error) {
	parts := strings.Split(id, ":")
	if len(parts) < 3 || parts[0] != "did" || parts[1] != methodWeb {
		return "", fmt.Errorf("%w: %q", ErrInvalidVid, id)
	}
	host := parts[2]
	if host == "" {
		return "", fmt.Errorf("%w: empty host in %q", ErrInvalidVid, id)
	}
	path := strings.Join(parts[3:], "/")
	if path == "" {
		return "https://" + host + "/did.json", nil
	}
	return "https://" + host + "/" + path + "/did.json", nil
}
