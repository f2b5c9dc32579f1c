package executor

import (
	"fmt"

	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/name"
	"github.com/google/go-containerregistry/pkg/v1/remote"
)

// resolveImageRef resolves imageRef to its registry digest before
// handing it to containerd's pull, so two manifests naming the same
// mutable tag are recognized as the same ManifestID once resolved
// (jordigilh-kubernaut pulls in go-containerregistry for the same
// reason: validating a reference against the registry ahead of the
// runtime-specific pull).
func resolveImageRef(imageRef string) (string, error) {
	ref, err := name.ParseReference(imageRef)
	if err != nil {
		return "", fmt.Errorf("executor: parsing image reference %s: %w", imageRef, err)
	}

	desc, err := remote.Get(ref, remote.WithAuthFromKeychain(authn.DefaultKeychain))
	if err != nil {
		return "", fmt.Errorf("executor: resolving image reference %s: %w", imageRef, err)
	}

	return ref.Context().Digest(desc.Digest.String()).String(), nil
}
