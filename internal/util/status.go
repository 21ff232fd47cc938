package util

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"
	"k8s.io/apimachinery/pkg/api/equality"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

// StatusPatchParams holds the parameters for patching status.
type StatusPatchParams struct {
	Client     client.Client
	Logger     logr.Logger
	Object     client.Object
	Original   client.Object
	OldStatus  any
	NewStatus  any
	FieldOwner string
}

// PatchStatusIfChanged merge-patches the status subresource when NewStatus
// differs from OldStatus. It reports whether a patch was sent. An object
// deleted between read and patch is not an error.
func PatchStatusIfChanged(ctx context.Context, params StatusPatchParams) (bool, error) {
	if equality.Semantic.DeepEqual(params.OldStatus, params.NewStatus) {
		params.Logger.V(1).Info("Resource status unchanged, skipping update")
		return false, nil
	}

	err := params.Client.Status().Patch(ctx, params.Object, client.MergeFrom(params.Original), client.FieldOwner(params.FieldOwner))
	switch {
	case err == nil:
		return true, nil
	case apierrors.IsNotFound(err):
		params.Logger.Info("Resource disappeared before status patch")
		return false, nil
	default:
		params.Logger.Error(err, "Failed to patch resource status")
		return false, fmt.Errorf("failed to patch resource status: %w", err)
	}
}

// SetCondition records a condition stamped with the object's generation.
// LastTransitionTime only moves when the status flips.
func SetCondition(conditions *[]metav1.Condition, generation int64, condType string, status metav1.ConditionStatus, reason, message string) {
	meta.SetStatusCondition(conditions, metav1.Condition{
		Type:               condType,
		Status:             status,
		Reason:             reason,
		Message:            message,
		ObservedGeneration: generation,
	})
}
