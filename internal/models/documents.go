package models

// DocType distinguishes the two controlled document libraries.
type DocType string

const (
	DocTypePolicy    DocType = "policy"
	DocTypeProcedure DocType = "procedure"
)

// DocumentStatusArchived hides a document from the portal.
const DocumentStatusArchived = "archived"

// DocumentSummary is a policy or procedure as listed by the backend.
type DocumentSummary struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Slug          string `json:"slug"`
	Version       string `json:"version"`
	EffectiveDate string `json:"effective_date"`
	Owner         string `json:"owner"`
	Status        string `json:"status"`
}

// DocumentDetail is a single policy or procedure including its body.
type DocumentDetail struct {
	DocumentSummary

	DocumentControlID string `json:"document_control_id"`
	Body              string `json:"body"`
	CreatedAt         string `json:"created_at"`
	UpdatedAt         string `json:"updated_at"`
}

// DocumentInput is the body of document create and update calls.
type DocumentInput struct {
	Name              string `json:"name,omitempty"`
	Slug              string `json:"slug,omitempty"`
	Version           string `json:"version,omitempty"`
	EffectiveDate     string `json:"effective_date,omitempty"`
	Owner             string `json:"owner,omitempty"`
	DocumentControlID string `json:"document_control_id,omitempty"`
	Body              string `json:"body,omitempty"`
	Status            string `json:"status,omitempty"`
}

// BundleAck is returned by POST /me/acknowledge-policies/.
type BundleAck struct {
	Status     string `json:"status"`
	BundleHash string `json:"bundle_hash"`
}

// EmployeeProfile is returned by GET /me/profile/.
type EmployeeProfile struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
}

// ProfileUpdate is the body of the profile PATCH endpoints.
type ProfileUpdate struct {
	Email     string `json:"email,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

// LoginResult is returned by POST /auth/login/.
type LoginResult struct {
	User     string `json:"user"`
	ID       string `json:"id"`
	UserType Role   `json:"user_type,omitempty"`
}

// AssetSummary is an asset as listed by the backend.
type AssetSummary struct {
	ID                string  `json:"id"`
	ManufacturerModel string  `json:"manufacturer_model"`
	SerialNumber      string  `json:"serial_number"`
	CustomerID        *string `json:"customer_id"`
	CustomerName      string  `json:"customer_name"`
	Status            string  `json:"status"`
	Location          string  `json:"location"`
	IntakeTimestamp   *string `json:"intake_timestamp"`
	WorkOrderID       *string `json:"work_order_id,omitempty"`
	ShipmentID        *string `json:"shipment_id,omitempty"`
	CreatedAt         string  `json:"created_at"`
}

// AssetUpdate is the body of PATCH /assets/{id}/. Identifying fields may only
// be set once.
type AssetUpdate struct {
	InternalNotes     *string `json:"internal_notes,omitempty"`
	PublicNotes       *string `json:"public_notes,omitempty"`
	SerialNumber      *string `json:"serial_number,omitempty"`
	ManufacturerModel *string `json:"manufacturer_model,omitempty"`
}

// IncidentInput is the body of POST /incidents/.
type IncidentInput struct {
	AssetID     string `json:"asset_id"`
	Reason      string `json:"reason"`
	Description string `json:"description"`
}

// Incident is an asset data-correction incident.
type Incident struct {
	ID              string  `json:"id"`
	AssetID         string  `json:"asset_id"`
	Reason          string  `json:"reason"`
	Description     string  `json:"description"`
	ReportedAt      string  `json:"reported_at"`
	ResolvedAt      *string `json:"resolved_at"`
	ResolutionNotes string  `json:"resolution_notes"`
}

// WorkOrderInput is the body of POST /work-orders/.
type WorkOrderInput struct {
	AssetIDs       []string `json:"asset_ids"`
	IntendedAction string   `json:"intended_action,omitempty"`
	Notes          string   `json:"notes,omitempty"`
}

// WorkOrder is the subset of a work order the client reads.
type WorkOrder struct {
	ID             string         `json:"id"`
	Number         string         `json:"number"`
	Status         string         `json:"status"`
	IntendedAction string         `json:"intended_action"`
	Notes          string         `json:"notes"`
	Assets         []AssetSummary `json:"assets,omitempty"`
}

// ShipmentInput is the body of shipment create calls.
type ShipmentInput struct {
	Carrier         string `json:"carrier,omitempty"`
	TrackingNumber  string `json:"tracking_number,omitempty"`
	DestinationType string `json:"destination_type,omitempty"`
	Notes           string `json:"notes,omitempty"`
}

// Shipment is the subset of a shipment the client reads.
type Shipment struct {
	ID              string `json:"id"`
	Status          string `json:"status"`
	Carrier         string `json:"carrier"`
	TrackingNumber  string `json:"tracking_number"`
	DestinationType string `json:"destination_type"`
	Notes           string `json:"notes"`
}

// IntakeRequestItem is one line of an intake request.
type IntakeRequestItem struct {
	ManufacturerModel string `json:"manufacturer_model,omitempty"`
	SerialNumber      string `json:"serial_number,omitempty"`
	Quantity          int    `json:"quantity,omitempty"`
	Notes             string `json:"notes,omitempty"`
}

// IntakeRequestInput is the body of POST /intake-requests/.
type IntakeRequestInput struct {
	Items        []IntakeRequestItem `json:"items"`
	CustomerID   *string             `json:"customer_id,omitempty"`
	CompanyName  string              `json:"company_name,omitempty"`
	ContactName  string              `json:"contact_name,omitempty"`
	ContactEmail string              `json:"contact_email,omitempty"`
	ContactPhone string              `json:"contact_phone,omitempty"`
	Notes        string              `json:"notes,omitempty"`
	DeliveryType string              `json:"delivery_type,omitempty"`
}

// CreatedRef is the minimal response of several create endpoints.
type CreatedRef struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// ContactInput is the body of the public contact form.
type ContactInput struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Company string `json:"company,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Message string `json:"message"`
}

// HealthStatus is returned by GET /health/.
type HealthStatus struct {
	Status string `json:"status"`
	Env    string `json:"env"`
}
