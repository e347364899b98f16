package domain

import "fmt"

// Role is the side an actor acts for on a project.
type Role string

const (
	RoleContractor Role = "contractor"
	RoleMandante   Role = "mandante"
	RoleSpecialist Role = "specialist"
)

func (r Role) Valid() bool {
	switch r {
	case RoleContractor, RoleMandante, RoleSpecialist:
		return true
	}
	return false
}

func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("invalid role %q", s)
	}
	return r, nil
}

// Kind discriminates workflow items.
type Kind string

const (
	KindRFI       Kind = "rfi"
	KindAdicional Kind = "adicional"
	KindPayment   Kind = "estado_pago"
)

func (k Kind) Valid() bool {
	switch k {
	case KindRFI, KindAdicional, KindPayment:
		return true
	}
	return false
}

type RFIStatus string

const (
	RFIPendiente  RFIStatus = "Pendiente"
	RFIRespondido RFIStatus = "Respondido"
)

func (s RFIStatus) Terminal() bool {
	switch s {
	case RFIRespondido:
		return true
	case RFIPendiente:
		return false
	}
	// unknown states are treated as closed
	return true
}

type Urgency string

const (
	UrgencyNormal     Urgency = "normal"
	UrgencyUrgente    Urgency = "urgente"
	UrgencyMuyUrgente Urgency = "muy_urgente"
)

func (u Urgency) Valid() bool {
	switch u {
	case UrgencyNormal, UrgencyUrgente, UrgencyMuyUrgente:
		return true
	}
	return false
}

type AdicionalStatus string

const (
	AdicionalPendiente AdicionalStatus = "Pendiente"
	AdicionalEnviado   AdicionalStatus = "Enviado"
	AdicionalAprobado  AdicionalStatus = "Aprobado"
	AdicionalRechazado AdicionalStatus = "Rechazado"
)

func (s AdicionalStatus) Terminal() bool {
	switch s {
	case AdicionalAprobado, AdicionalRechazado:
		return true
	case AdicionalPendiente, AdicionalEnviado:
		return false
	}
	return true
}

type PaymentStatus string

const (
	PaymentProgramado PaymentStatus = "Programado"
	PaymentPendiente  PaymentStatus = "Pendiente"
	PaymentEnviado    PaymentStatus = "Enviado"
	PaymentAprobado   PaymentStatus = "Aprobado"
	PaymentRechazado  PaymentStatus = "Rechazado"
)

func (s PaymentStatus) Terminal() bool {
	switch s {
	case PaymentAprobado, PaymentRechazado:
		return true
	case PaymentProgramado, PaymentPendiente, PaymentEnviado:
		return false
	}
	return true
}

// Display returns the label shown for the given role. The mandante UI calls
// an Enviado submission "Recibido".
func (s PaymentStatus) Display(role Role) string {
	if s == PaymentEnviado && role == RoleMandante {
		return "Recibido"
	}
	return string(s)
}

type Currency string

const (
	CurrencyCLP Currency = "CLP"
	CurrencyUF  Currency = "UF"
	CurrencyUSD Currency = "USD"
)

func (c Currency) Valid() bool {
	switch c {
	case CurrencyCLP, CurrencyUF, CurrencyUSD:
		return true
	}
	return false
}
