package controller

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	notificationmiloapiscomv1alpha1 "go.miloapis.com/milo/pkg/apis/notification/v1alpha1"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/types"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	"k8s.io/utils/ptr"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/apiutil"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"

	"go.miloapis.com/email-provider-autosend/pkg/autosend"
)

// fakeContacts records the calls the controller makes against Autosend.
type fakeContacts struct {
	mu sync.Mutex

	upsertResp *autosend.Response
	upsertErr  error
	deleteResp *autosend.Response
	deleteErr  error

	upserts []autosend.ContactRequest
	deletes []string
}

func (f *fakeContacts) Upsert(_ context.Context, req autosend.ContactRequest) (*autosend.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts = append(f.upserts, req)
	if f.upsertErr != nil {
		return nil, f.upsertErr
	}
	return f.upsertResp, nil
}

func (f *fakeContacts) DeleteByUserID(_ context.Context, userID string) (*autosend.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, userID)
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	if f.deleteResp != nil {
		return f.deleteResp, nil
	}
	return &autosend.Response{StatusCode: http.StatusOK}, nil
}

func (f *fakeContacts) Create(context.Context, autosend.ContactRequest) (*autosend.Response, error) {
	Fail("Create must not be called by the controller")
	return nil, nil
}

func (f *fakeContacts) Get(context.Context, string) (*autosend.Response, error) {
	Fail("Get must not be called by the controller")
	return nil, nil
}

func (f *fakeContacts) Remove(context.Context, []string) (*autosend.Response, error) {
	Fail("Remove must not be called by the controller")
	return nil, nil
}

func (f *fakeContacts) SearchByEmails(context.Context, []string) (*autosend.Response, error) {
	Fail("SearchByEmails must not be called by the controller")
	return nil, nil
}

func (f *fakeContacts) BulkUpdate(context.Context, []autosend.ContactRequest, bool) (*autosend.Response, error) {
	Fail("BulkUpdate must not be called by the controller")
	return nil, nil
}

func (f *fakeContacts) DeleteByID(context.Context, string) (*autosend.Response, error) {
	Fail("DeleteByID must not be called by the controller")
	return nil, nil
}

func (f *fakeContacts) GetUnsubscribeGroups(context.Context, string) (*autosend.Response, error) {
	Fail("GetUnsubscribeGroups must not be called by the controller")
	return nil, nil
}

func jsonResponse(body string) *autosend.Response {
	return &autosend.Response{StatusCode: http.StatusOK, Body: json.RawMessage(body)}
}

var _ = Describe("AutosendContactController", func() {
	const (
		name      = "jane"
		namespace = "default"
		uid       = types.UID("5b1f3c9e-uid")
	)

	var (
		ctx      context.Context
		scheme   *runtime.Scheme
		provider *fakeContacts
		key      types.NamespacedName
	)

	newContact := func(mutate ...func(*notificationmiloapiscomv1alpha1.Contact)) *notificationmiloapiscomv1alpha1.Contact {
		c := &notificationmiloapiscomv1alpha1.Contact{
			ObjectMeta: metav1.ObjectMeta{
				Name:       name,
				Namespace:  namespace,
				UID:        uid,
				Generation: 1,
			},
		}
		c.Spec.Email = "jane@example.com"
		c.Spec.GivenName = "Jane"
		c.Spec.FamilyName = "Doe"
		for _, m := range mutate {
			m(c)
		}
		return c
	}

	withFinalizer := func(c *notificationmiloapiscomv1alpha1.Contact) {
		c.Finalizers = append(c.Finalizers, autosendContactFinalizerKey)
	}

	newController := func(objs ...client.Object) *AutosendContactController {
		gvk, err := apiutil.GVKForObject(&notificationmiloapiscomv1alpha1.Contact{}, scheme)
		Expect(err).NotTo(HaveOccurred())
		mapper := meta.NewDefaultRESTMapper(nil)
		mapper.Add(gvk, meta.RESTScopeNamespace)

		c := fake.NewClientBuilder().
			WithScheme(scheme).
			WithRESTMapper(mapper).
			WithObjects(objs...).
			WithStatusSubresource(&notificationmiloapiscomv1alpha1.Contact{}).
			Build()

		r := &AutosendContactController{Client: c, Autosend: provider}
		Expect(r.RegisterFinalizers()).To(Succeed())
		return r
	}

	reconcile := func(r *AutosendContactController) (ctrl.Result, error) {
		return r.Reconcile(ctx, ctrl.Request{NamespacedName: key})
	}

	fetch := func(r *AutosendContactController) *notificationmiloapiscomv1alpha1.Contact {
		got := &notificationmiloapiscomv1alpha1.Contact{}
		Expect(r.Client.Get(ctx, key, got)).To(Succeed())
		return got
	}

	BeforeEach(func() {
		ctx = context.Background()
		scheme = runtime.NewScheme()
		utilruntime.Must(notificationmiloapiscomv1alpha1.AddToScheme(scheme))
		provider = &fakeContacts{upsertResp: jsonResponse(`{"id":"c_123"}`)}
		key = types.NamespacedName{Name: name, Namespace: namespace}
	})

	It("ignores contacts that no longer exist", func() {
		r := newController()

		result, err := reconcile(r)
		Expect(err).NotTo(HaveOccurred())
		Expect(result).To(Equal(ctrl.Result{}))
		Expect(provider.upserts).To(BeEmpty())
	})

	It("adds the finalizer before syncing", func() {
		r := newController(newContact())

		_, err := reconcile(r)
		Expect(err).NotTo(HaveOccurred())

		Expect(fetch(r).Finalizers).To(ContainElement(autosendContactFinalizerKey))
		Expect(provider.upserts).To(BeEmpty())
	})

	It("upserts a new contact and records the provider id", func() {
		r := newController(newContact(withFinalizer))

		_, err := reconcile(r)
		Expect(err).NotTo(HaveOccurred())

		Expect(provider.upserts).To(ConsistOf(autosend.ContactRequest{
			Email:        "jane@example.com",
			FirstName:    "Jane",
			LastName:     "Doe",
			UserID:       string(uid),
			CustomFields: map[string]any{"source": contactSource},
		}))

		got := fetch(r)
		cond := meta.FindStatusCondition(got.Status.Conditions, AutosendContactReadyCondition)
		Expect(cond).NotTo(BeNil())
		Expect(cond.Status).To(Equal(metav1.ConditionTrue))
		Expect(cond.Reason).To(Equal(AutosendContactCreatedReason))
		Expect(cond.ObservedGeneration).To(Equal(int64(1)))
		Expect(got.Status.Providers).To(ConsistOf(notificationmiloapiscomv1alpha1.ContactProviderStatus{
			Name: ProviderName,
			ID:   "c_123",
		}))
	})

	It("does not call Autosend again for an already synced generation", func() {
		r := newController(newContact(withFinalizer))

		_, err := reconcile(r)
		Expect(err).NotTo(HaveOccurred())
		_, err = reconcile(r)
		Expect(err).NotTo(HaveOccurred())

		Expect(provider.upserts).To(HaveLen(1))
	})

	It("falls back to the contact UID when Autosend returns no id", func() {
		provider.upsertResp = &autosend.Response{StatusCode: http.StatusNoContent}
		r := newController(newContact(withFinalizer))

		_, err := reconcile(r)
		Expect(err).NotTo(HaveOccurred())

		Expect(fetch(r).Status.Providers).To(ConsistOf(notificationmiloapiscomv1alpha1.ContactProviderStatus{
			Name: ProviderName,
			ID:   string(uid),
		}))
	})

	It("marks the contact not created when Autosend rejects it", func() {
		provider.upsertErr = &autosend.RequestError{StatusCode: http.StatusBadRequest, Message: "invalid contact"}
		r := newController(newContact(withFinalizer))

		result, err := reconcile(r)
		Expect(err).NotTo(HaveOccurred())
		Expect(result).To(Equal(ctrl.Result{}))

		got := fetch(r)
		cond := meta.FindStatusCondition(got.Status.Conditions, AutosendContactReadyCondition)
		Expect(cond).NotTo(BeNil())
		Expect(cond.Status).To(Equal(metav1.ConditionFalse))
		Expect(cond.Reason).To(Equal(AutosendContactNotCreatedReason))
		Expect(cond.Message).To(ContainSubstring("invalid contact"))
		Expect(got.Status.Providers).To(BeEmpty())
	})

	It("treats a malformed email as terminal", func() {
		r := newController(newContact(withFinalizer, func(c *notificationmiloapiscomv1alpha1.Contact) {
			c.Spec.Email = "not-an-email"
		}))
		provider.upsertErr = &autosend.ValidationError{Field: "email", Message: "invalid email address"}

		_, err := reconcile(r)
		Expect(err).NotTo(HaveOccurred())

		cond := meta.FindStatusCondition(fetch(r).Status.Conditions, AutosendContactReadyCondition)
		Expect(cond).NotTo(BeNil())
		Expect(cond.Status).To(Equal(metav1.ConditionFalse))
	})

	It("retries transient failures without touching status", func() {
		provider.upsertErr = &autosend.RequestError{StatusCode: http.StatusServiceUnavailable, Message: "unavailable"}
		r := newController(newContact(withFinalizer))

		_, err := reconcile(r)
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("failed to create Autosend contact"))

		Expect(fetch(r).Status.Conditions).To(BeEmpty())
	})

	It("upserts again when the generation changes", func() {
		r := newController(newContact(withFinalizer, func(c *notificationmiloapiscomv1alpha1.Contact) {
			c.Generation = 2
			c.Spec.GivenName = "Janet"
			c.Status.Conditions = []metav1.Condition{{
				Type:               AutosendContactReadyCondition,
				Status:             metav1.ConditionTrue,
				Reason:             AutosendContactCreatedReason,
				ObservedGeneration: 1,
				LastTransitionTime: metav1.Now(),
			}}
			c.Status.Providers = []notificationmiloapiscomv1alpha1.ContactProviderStatus{{Name: ProviderName, ID: "c_123"}}
		}))

		_, err := reconcile(r)
		Expect(err).NotTo(HaveOccurred())

		Expect(provider.upserts).To(HaveLen(1))
		Expect(provider.upserts[0].FirstName).To(Equal("Janet"))

		cond := meta.FindStatusCondition(fetch(r).Status.Conditions, AutosendContactReadyCondition)
		Expect(cond).NotTo(BeNil())
		Expect(cond.Reason).To(Equal(AutosendContactUpdatedReason))
		Expect(cond.ObservedGeneration).To(Equal(int64(2)))
	})

	Context("when the contact is being deleted", func() {
		deleting := func(c *notificationmiloapiscomv1alpha1.Contact) {
			c.DeletionTimestamp = ptr.To(metav1.Now())
		}

		It("deletes the Autosend contact by user id and releases the finalizer", func() {
			r := newController(newContact(withFinalizer, deleting))

			_, err := reconcile(r)
			Expect(err).NotTo(HaveOccurred())

			Expect(provider.deletes).To(ConsistOf(string(uid)))
			Expect(provider.upserts).To(BeEmpty())

			err = r.Client.Get(ctx, key, &notificationmiloapiscomv1alpha1.Contact{})
			Expect(apierrors.IsNotFound(err)).To(BeTrue())
		})

		It("releases the finalizer when Autosend answers with plain text", func() {
			provider.deleteResp = &autosend.Response{StatusCode: http.StatusOK, Text: "Contact deleted"}
			r := newController(newContact(withFinalizer, deleting))

			_, err := reconcile(r)
			Expect(err).NotTo(HaveOccurred())
			Expect(provider.deletes).To(ConsistOf(string(uid)))

			err = r.Client.Get(ctx, key, &notificationmiloapiscomv1alpha1.Contact{})
			Expect(apierrors.IsNotFound(err)).To(BeTrue())
		})

		It("treats a missing Autosend contact as already deleted", func() {
			provider.deleteErr = &autosend.RequestError{StatusCode: http.StatusNotFound, Message: "not found"}
			r := newController(newContact(withFinalizer, deleting))

			_, err := reconcile(r)
			Expect(err).NotTo(HaveOccurred())
			Expect(provider.deletes).To(HaveLen(1))
		})

		It("keeps the finalizer when the delete fails", func() {
			provider.deleteErr = &autosend.RequestError{StatusCode: http.StatusInternalServerError, Message: "boom"}
			r := newController(newContact(withFinalizer, deleting))

			_, err := reconcile(r)
			Expect(err).To(HaveOccurred())

			Expect(fetch(r).Finalizers).To(ContainElement(autosendContactFinalizerKey))
		})
	})
})

var _ = Describe("providerIDFrom", func() {
	DescribeTable("extracts the contact id",
		func(resp *autosend.Response, want string) {
			Expect(providerIDFrom(resp, "fallback")).To(Equal(want))
		},
		Entry("top-level id", jsonResponse(`{"id":"c_1"}`), "c_1"),
		Entry("nested data id", jsonResponse(`{"data":{"id":"c_2"}}`), "c_2"),
		Entry("no id", jsonResponse(`{"email":"jane@example.com"}`), "fallback"),
		Entry("array body", jsonResponse(`[1,2]`), "fallback"),
		Entry("empty body", &autosend.Response{StatusCode: http.StatusNoContent}, "fallback"),
		Entry("plain text body", &autosend.Response{StatusCode: http.StatusOK, Text: "ok"}, "fallback"),
		Entry("nil response", nil, "fallback"),
	)
})
