package workflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"obralink/internal/domain"
)

var (
	now        = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	contractor = Actor{Subject: "acct-contractor", Role: domain.RoleContractor}
	mandante   = Actor{Subject: "acct-mandante", Role: domain.RoleMandante}
	mandante2  = Actor{Subject: "acct-mandante-2", Role: domain.RoleMandante}
	specialist = Actor{Subject: "ing.estructural@example.com", Role: domain.RoleSpecialist}
)

func pendingRFI(t *testing.T) domain.RFI {
	t.Helper()
	r, err := CreateRFI(NewRFI{ProjectID: "obra-1", Title: "Detalle de losa"}, contractor, now)
	require.NoError(t, err)
	r.ID = 3
	return r
}

func pendingAdicional(t *testing.T) domain.Adicional {
	t.Helper()
	ad, err := CreateAdicional(NewAdicional{ProjectID: "obra-1", Title: "Refuerzo muro", PresentedAmount: 1500000}, contractor, now)
	require.NoError(t, err)
	ad.ID = 4
	return ad
}

func submittedPayment(t *testing.T, quorum int) domain.PaymentSubmission {
	t.Helper()
	p, err := CreatePayment(NewPayment{
		ProjectID:         "obra-1",
		Period:            "2026-02",
		TotalAmount:       42000000,
		ApprovalsRequired: quorum,
		RequiredDocs:      []string{"f30", "libro_remuneraciones"},
	}, contractor, now)
	require.NoError(t, err)
	p.ID = 9
	for _, doc := range []string{"f30", "libro_remuneraciones"} {
		p, _, err = MarkDocument{Doc: doc, Present: true}.Apply(p, contractor, now)
		require.NoError(t, err)
	}
	p, _, err = Submit{AccessRef: "ref-1"}.Apply(p, contractor, now)
	require.NoError(t, err)
	return p
}

func TestCreateRFIDefaults(t *testing.T) {
	r := pendingRFI(t)
	assert.Equal(t, domain.RFIPendiente, r.Status)
	assert.Equal(t, domain.UrgencyNormal, r.Urgency)
	assert.Equal(t, contractor.Subject, r.CreatedBy.Subject)

	_, err := CreateRFI(NewRFI{ProjectID: "obra-1", Title: "x"}, specialist, now)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = CreateRFI(NewRFI{ProjectID: "obra-1", Title: " "}, contractor, now)
	var verr domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "title", verr.Field)
}

func TestRespondTwiceIsInvalidTransition(t *testing.T) {
	r := pendingRFI(t)
	r, notes, err := Respond{Text: "Usar malla C-188"}.Apply(r, mandante, now)
	require.NoError(t, err)
	assert.Equal(t, domain.RFIRespondido, r.Status)
	assert.Equal(t, "Usar malla C-188", r.Response)
	require.NotNil(t, r.RespondedAt)
	require.Len(t, notes, 1)
	assert.Equal(t, EventRFIResponded, notes[0].Type)
	assert.Equal(t, contractor.Subject, notes[0].Recipient)

	_, _, err = Respond{Text: "otra"}.Apply(r, mandante, now)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestRespondToMandanteRFINotifiesContractorSide(t *testing.T) {
	r, err := CreateRFI(NewRFI{ProjectID: "obra-1", Title: "Cota de fundación"}, mandante, now)
	require.NoError(t, err)
	r.ID = 5
	_, notes, err := Respond{Text: "ver plano E-12"}.Apply(r, mandante2, now)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, string(domain.RoleContractor), notes[0].Recipient)
}

func TestRespondRequiresMandante(t *testing.T) {
	r := pendingRFI(t)
	_, _, err := Respond{Text: "ok"}.Apply(r, contractor, now)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, _, err = Respond{Text: ""}.Apply(r, mandante, now)
	var verr domain.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestForwardKeepsStatusAndDedupes(t *testing.T) {
	r := pendingRFI(t)
	r, notes, err := Forward{Recipients: []string{"a@example.com", "b@example.com", "a@example.com"}}.Apply(r, contractor, now)
	require.NoError(t, err)
	assert.Equal(t, domain.RFIPendiente, r.Status)
	assert.Len(t, r.Forwards, 2)
	assert.Len(t, notes, 2)

	r, notes, err = Forward{Recipients: []string{"b@example.com", "c@example.com"}}.Apply(r, mandante, now)
	require.NoError(t, err)
	assert.Len(t, r.Forwards, 3)
	require.Len(t, notes, 1)
	assert.Equal(t, "c@example.com", notes[0].Recipient)

	_, _, err = Forward{Recipients: []string{"a@example.com"}}.Apply(r, mandante, now)
	var verr domain.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestForwardAfterRespondIsInvalidTransition(t *testing.T) {
	r := pendingRFI(t)
	r, _, err := Respond{Text: "listo"}.Apply(r, mandante, now)
	require.NoError(t, err)
	_, _, err = Forward{Recipients: []string{"a@example.com"}}.Apply(r, contractor, now)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestForwardBySpecialistForbidden(t *testing.T) {
	_, _, err := Forward{Recipients: []string{"x@example.com"}}.Apply(pendingRFI(t), specialist, now)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestApproveAdicionalDefaultsToPresentedAmount(t *testing.T) {
	ad, notes, err := Approve{}.Apply(pendingAdicional(t), mandante, now)
	require.NoError(t, err)
	assert.Equal(t, domain.AdicionalAprobado, ad.Status)
	require.NotNil(t, ad.ApprovedAmount)
	assert.EqualValues(t, 1500000, *ad.ApprovedAmount)
	require.Len(t, notes, 1)
	assert.EqualValues(t, 1500000, notes[0].Payload["approved_amount"])

	partial := int64(900000)
	ad, _, err = Approve{Amount: &partial}.Apply(pendingAdicional(t), mandante, now)
	require.NoError(t, err)
	assert.EqualValues(t, 900000, *ad.ApprovedAmount)

	_, _, err = Approve{}.Apply(ad, mandante, now)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestRejectAdicionalNotes(t *testing.T) {
	ad := pendingAdicional(t)
	_, _, err := Reject{Notes: "  "}.Apply(ad, mandante, now)
	var verr domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "notes", verr.Field)

	ad, notes, err := Reject{Notes: "budget exceeded"}.Apply(ad, mandante, now)
	require.NoError(t, err)
	assert.Equal(t, domain.AdicionalRechazado, ad.Status)
	assert.Equal(t, "budget exceeded", ad.RejectionNotes)
	assert.Equal(t, "budget exceeded", notes[0].Payload["reason"])
}

func TestCreateAdicionalContractorOnly(t *testing.T) {
	_, err := CreateAdicional(NewAdicional{ProjectID: "obra-1", Title: "x", PresentedAmount: 1}, mandante, now)
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = CreateAdicional(NewAdicional{ProjectID: "obra-1", Title: "x"}, contractor, now)
	var verr domain.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestPaymentQuorum(t *testing.T) {
	p := submittedPayment(t, 2)
	assert.Equal(t, domain.PaymentEnviado, p.Status)
	assert.Equal(t, "ref-1", p.AccessRef)

	p, notes, err := RecordApproval{}.Apply(p, mandante, now)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentEnviado, p.Status)
	assert.Equal(t, 1, p.ApprovalProgress)
	assert.Equal(t, EventPaymentApprovalRecorded, notes[0].Type)

	_, _, err = RecordApproval{}.Apply(p, mandante, now)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	p, notes, err = RecordApproval{}.Apply(p, mandante2, now)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentAprobado, p.Status)
	assert.Equal(t, 2, p.ApprovalProgress)
	assert.Equal(t, EventPaymentApproved, notes[0].Type)

	_, _, err = RejectPayment{}.Apply(p, mandante, now)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestPaymentRejectAfterPartialApproval(t *testing.T) {
	p := submittedPayment(t, 3)
	p, _, err := RecordApproval{}.Apply(p, mandante, now)
	require.NoError(t, err)
	p, _, err = RejectPayment{Notes: "falta F30 de subcontrato"}.Apply(p, mandante2, now)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentRechazado, p.Status)
	assert.Equal(t, "falta F30 de subcontrato", p.RejectionNotes)
}

func TestSubmitRequiresDocuments(t *testing.T) {
	p, err := CreatePayment(NewPayment{
		ProjectID: "obra-1", Period: "2026-02", TotalAmount: 10, ApprovalsRequired: 1,
		RequiredDocs: []string{"f30", "f29"},
	}, contractor, now)
	require.NoError(t, err)
	p, _, err = MarkDocument{Doc: "f30", Present: true}.Apply(p, contractor, now)
	require.NoError(t, err)

	_, _, err = Submit{AccessRef: "r"}.Apply(p, contractor, now)
	var verr domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Reason, "f29")
	assert.Equal(t, []string{"f29"}, MissingDocuments(p))

	_, _, err = MarkDocument{Doc: "boleta", Present: true}.Apply(p, contractor, now)
	assert.ErrorAs(t, err, &verr)
}

func TestScheduledPaymentOnlyOpens(t *testing.T) {
	p, err := CreatePayment(NewPayment{
		ProjectID: "obra-1", Period: "2026-03", TotalAmount: 10, ApprovalsRequired: 1, Scheduled: true,
	}, contractor, now)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentProgramado, p.Status)

	_, _, err = Submit{AccessRef: "r"}.Apply(p, contractor, now)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	_, _, err = RecordApproval{}.Apply(p, mandante, now)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	p, notes, err := Open(p, "scheduler")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPendiente, p.Status)
	assert.Len(t, notes, 1)

	_, _, err = Open(p, "scheduler")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestPaymentDisplayForMandante(t *testing.T) {
	assert.Equal(t, "Recibido", domain.PaymentEnviado.Display(domain.RoleMandante))
	assert.Equal(t, "Enviado", domain.PaymentEnviado.Display(domain.RoleContractor))
}
