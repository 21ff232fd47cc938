package controller

import (
	"context"
	"fmt"

	"go.miloapis.com/email-provider-autosend/internal/util"
	"go.miloapis.com/email-provider-autosend/pkg/autosend"
	notificationmiloapiscomv1alpha1 "go.miloapis.com/milo/pkg/apis/notification/v1alpha1"

	"k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/finalizer"
	logf "sigs.k8s.io/controller-runtime/pkg/log"
)

const (
	autosendContactFinalizerKey = "notification.miloapis.com/autosend-contact"

	// ProviderName is the name recorded in Contact.Status.Providers.
	ProviderName = "Autosend"

	contactSource = "email-provider-autosend-k8s-controller"
	fieldOwner    = "autosendcontact-controller"
)

const (
	// AutosendContactReadyCondition is a condition that is set to true when the Autosend contact is ready
	AutosendContactReadyCondition = "AutosendContactReady"
	// AutosendContactNotCreatedReason is a reason that is set when the Autosend contact is not created
	AutosendContactNotCreatedReason = "ContactNotCreated"
	// AutosendContactCreatedReason is a reason that is set when the Autosend contact is created
	AutosendContactCreatedReason = "ContactCreated"
	// AutosendContactUpdatedReason is a reason that is set when the Autosend contact is updated
	AutosendContactUpdatedReason = "ContactUpdated"
	// AutosendContactNotUpdatedReason is a reason that is set when the Autosend contact is not updated
	AutosendContactNotUpdatedReason = "ContactNotUpdated"
)

// AutosendContactController reconciles Milo Contact objects into Autosend contacts.
type AutosendContactController struct {
	Client     client.Client
	Finalizers finalizer.Finalizers
	Autosend   autosend.ContactsAPI
}

// autosendContactFinalizer removes the Autosend contact when the Contact is deleted.
type autosendContactFinalizer struct {
	Autosend autosend.ContactsAPI
}

func (f *autosendContactFinalizer) Finalize(ctx context.Context, obj client.Object) (finalizer.Result, error) {
	log := logf.FromContext(ctx).WithValues("finalizer", "ContactFinalizer", "trigger", obj.GetName())
	log.Info("Finalizing Contact")

	contact, ok := obj.(*notificationmiloapiscomv1alpha1.Contact)
	if !ok {
		log.Error(fmt.Errorf("object is not a Contact"), "Failed to finalize Contact")
		return finalizer.Result{}, fmt.Errorf("object is not a Contact")
	}

	if err := f.deleteContact(ctx, contact); err != nil {
		log.Error(err, "Failed to delete Autosend contact")
		return finalizer.Result{}, fmt.Errorf("failed to delete Autosend contact: %w", err)
	}

	return finalizer.Result{}, nil
}

// +kubebuilder:rbac:groups=notification.miloapis.com,resources=contacts,verbs=get;list;watch
// +kubebuilder:rbac:groups=notification.miloapis.com,resources=contacts/status,verbs=get;update;patch
// +kubebuilder:rbac:groups=notification.miloapis.com,resources=contacts/finalizers,verbs=update

// Reconcile is the main function that reconciles the Contact object.
func (r *AutosendContactController) Reconcile(ctx context.Context, req ctrl.Request) (ctrl.Result, error) {
	log := logf.FromContext(ctx).WithValues("controller", "ContactController", "trigger", req.NamespacedName)
	log.Info("Starting reconciliation", "namespacedName", req.String(), "name", req.Name, "namespace", req.Namespace)

	contact := &notificationmiloapiscomv1alpha1.Contact{}
	err := r.Client.Get(ctx, req.NamespacedName, contact)
	if err != nil {
		if errors.IsNotFound(err) {
			log.Info("Contact not found. Probably deleted.")
			return ctrl.Result{}, nil
		}
		return ctrl.Result{}, fmt.Errorf("failed to get contact: %w", err)
	}

	finalizeResult, err := r.Finalizers.Finalize(ctx, contact)
	if err != nil {
		log.Error(err, "Failed to run finalizers for Contact")
		return ctrl.Result{}, fmt.Errorf("failed to run finalizers for Contact: %w", err)
	}
	if finalizeResult.Updated {
		log.Info("finalizer updated the contact object, updating API server")
		if updateErr := r.Client.Update(ctx, contact); updateErr != nil {
			if errors.IsConflict(updateErr) {
				log.Info("Conflict updating Contact after finalizer update; requeuing")
				return ctrl.Result{Requeue: true}, nil
			}
			log.Error(updateErr, "Failed to update Contact after finalizer update")
			return ctrl.Result{}, updateErr
		}
		return ctrl.Result{}, nil
	}
	if !contact.GetDeletionTimestamp().IsZero() {
		log.Info("Contact is being deleted, skipping sync")
		return ctrl.Result{}, nil
	}

	oldStatus := contact.Status.DeepCopy()
	original := contact.DeepCopy()
	readyCond := meta.FindStatusCondition(contact.Status.Conditions, AutosendContactReadyCondition)

	switch {
	// First creation – condition not present yet
	case readyCond == nil || readyCond.Reason == AutosendContactNotCreatedReason:
		log.Info("AutosendContact creation")

		providerID, err := r.upsertContact(ctx, contact)
		if err != nil && !isPermanent(err) {
			log.Error(err, "Failed to create Autosend contact")
			return ctrl.Result{}, fmt.Errorf("failed to create Autosend contact: %w", err)
		}

		if err != nil {
			log.Info("Autosend rejected the contact", "error", err.Error())
			setReadyCondition(contact, metav1.ConditionFalse, AutosendContactNotCreatedReason,
				fmt.Sprintf("Autosend contact not created on email provider: %s", err.Error()))
			break
		}

		log.Info("Autosend contact created", "providerID", providerID)
		setReadyCondition(contact, metav1.ConditionTrue, AutosendContactCreatedReason,
			"Autosend contact created on email provider")
		contact.Status.Providers = []notificationmiloapiscomv1alpha1.ContactProviderStatus{
			{
				Name: ProviderName,
				ID:   providerID,
			},
		}

	// Update – generation changed since we last processed the object
	case readyCond.ObservedGeneration != contact.GetGeneration():
		log.Info("Contact updated")

		_, err := r.upsertContact(ctx, contact)
		if err != nil && !isPermanent(err) {
			log.Error(err, "Failed to update Autosend contact")
			return ctrl.Result{}, fmt.Errorf("failed to update Autosend contact: %w", err)
		}

		if err != nil {
			log.Info("Failed to update contact on email provider", "error", err.Error())
			setReadyCondition(contact, metav1.ConditionFalse, AutosendContactNotUpdatedReason,
				fmt.Sprintf("Autosend contact not updated on email provider: %s", err.Error()))
			break
		}

		log.Info("Autosend contact updated")
		setReadyCondition(contact, metav1.ConditionTrue, AutosendContactUpdatedReason,
			"Autosend contact updated on email provider")
	}

	statusPatched, err := util.PatchStatusIfChanged(ctx, util.StatusPatchParams{
		Client:     r.Client,
		Logger:     log,
		Object:     contact,
		Original:   original,
		OldStatus:  oldStatus,
		NewStatus:  &contact.Status,
		FieldOwner: fieldOwner,
	})
	if err != nil {
		return ctrl.Result{}, err
	}

	log.Info("Contact reconciled", "statusPatched", statusPatched)

	return ctrl.Result{}, nil
}

// SetupWithManager sets up the controller with the Manager.
func (r *AutosendContactController) SetupWithManager(mgr ctrl.Manager) error {
	if err := r.RegisterFinalizers(); err != nil {
		return err
	}

	return ctrl.NewControllerManagedBy(mgr).
		For(&notificationmiloapiscomv1alpha1.Contact{}).
		Named("autosendcontact").
		Complete(r)
}

// RegisterFinalizers registers the Autosend contact finalizer.
func (r *AutosendContactController) RegisterFinalizers() error {
	r.Finalizers = finalizer.NewFinalizers()
	if err := r.Finalizers.Register(autosendContactFinalizerKey, &autosendContactFinalizer{
		Autosend: r.Autosend,
	}); err != nil {
		return fmt.Errorf("failed to register autosend contact finalizer: %w", err)
	}
	return nil
}

// upsertContact pushes the contact to Autosend and returns the provider ID,
// falling back to the Contact UID when the service does not return one.
func (r *AutosendContactController) upsertContact(ctx context.Context, contact *notificationmiloapiscomv1alpha1.Contact) (string, error) {
	log := logf.FromContext(ctx).WithValues("controller", "AutosendContactController", "trigger", contact.Name)
	log.Info("Upserting Autosend contact")

	resp, err := r.Autosend.Upsert(ctx, autosend.ContactRequest{
		Email:     contact.Spec.Email,
		UserID:    string(contact.UID),
		FirstName: contact.Spec.GivenName,
		LastName:  contact.Spec.FamilyName,
		CustomFields: map[string]any{
			"source": contactSource,
		},
	})
	if err != nil {
		log.Error(err, "Failed to upsert Autosend contact")
		return "", fmt.Errorf("failed to upsert Autosend contact: %w", err)
	}

	return providerIDFrom(resp, string(contact.UID)), nil
}

func (f *autosendContactFinalizer) deleteContact(ctx context.Context, contact *notificationmiloapiscomv1alpha1.Contact) error {
	log := logf.FromContext(ctx).WithValues("controller", "AutosendContactController", "trigger", contact.Name)
	log.Info("Deleting Autosend contact")

	_, err := f.Autosend.DeleteByUserID(ctx, string(contact.UID))
	if err != nil {
		if !autosend.IsNotFound(err) {
			log.Error(err, "Failed to delete Autosend contact")
			return fmt.Errorf("failed to delete Autosend contact: %w", err)
		}
		log.Info("Autosend contact not found, probably deleted already")
	}

	return nil
}

// isPermanent reports whether retrying would fail the same way: the contact
// failed local validation or the service rejected the payload.
func isPermanent(err error) bool {
	return autosend.IsValidation(err) || autosend.IsBadRequest(err)
}

// providerIDFrom extracts the contact ID from an upsert response. The service
// answers either {"id": ...} or {"data": {"id": ...}}.
func providerIDFrom(resp *autosend.Response, fallback string) string {
	if resp == nil {
		return fallback
	}
	var body struct {
		ID   string `json:"id"`
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := resp.Decode(&body); err != nil {
		return fallback
	}
	switch {
	case body.ID != "":
		return body.ID
	case body.Data.ID != "":
		return body.Data.ID
	default:
		return fallback
	}
}

func setReadyCondition(contact *notificationmiloapiscomv1alpha1.Contact, status metav1.ConditionStatus, reason, message string) {
	util.SetCondition(&contact.Status.Conditions, contact.GetGeneration(), AutosendContactReadyCondition, status, reason, message)
}
