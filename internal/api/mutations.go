package api

import (
	"context"

	"github.com/LunarVagabond/phasepoint-frontend/internal/models"
)

// CreateCustomer adds a customer and drops the cached customer list.
func (c *Client) CreateCustomer(ctx context.Context, in models.CustomerInput) (*models.CustomerSummary, error) {
	var out models.CustomerSummary
	if err := c.post(ctx, "/customers/create/", in, &out, "Failed to create customer"); err != nil {
		return nil, err
	}
	c.invalidateCustomers(ctx)
	return &out, nil
}

// UpdateCustomer edits a customer and drops the cached customer list.
func (c *Client) UpdateCustomer(ctx context.Context, id string, in models.CustomerInput) (*models.CustomerSummary, error) {
	var out models.CustomerSummary
	if err := c.patch(ctx, "/customers/"+escape(id)+"/", in, &out, "Failed to update customer"); err != nil {
		return nil, err
	}
	c.invalidateCustomers(ctx)
	return &out, nil
}

// CreateUser adds a user and drops every cached user list.
func (c *Client) CreateUser(ctx context.Context, in models.UserInput) (*models.UserSummary, error) {
	var out models.UserSummary
	if err := c.post(ctx, "/users/create/", in, &out, "Failed to create user"); err != nil {
		return nil, err
	}
	c.invalidateUsers(ctx)
	return &out, nil
}

// UpdateUser edits a user and drops every cached user list. Editing the
// logged-in user also refreshes the session.
func (c *Client) UpdateUser(ctx context.Context, id string, in models.UserUpdate) (*models.UserSummary, error) {
	var out models.UserSummary
	if err := c.patch(ctx, "/users/"+escape(id)+"/", in, &out, "Failed to update user"); err != nil {
		return nil, err
	}
	c.invalidateUsers(ctx)

	if c.sessions != nil {
		if current := c.sessions.Current(); current != nil && current.ID == id {
			c.refreshSession(ctx)
		}
	}
	return &out, nil
}

// DeleteUser removes a user and drops every cached user list.
func (c *Client) DeleteUser(ctx context.Context, id string) error {
	if err := c.delete(ctx, "/users/"+escape(id)+"/", "Failed to delete user"); err != nil {
		return err
	}
	c.invalidateUsers(ctx)
	return nil
}

func (c *Client) invalidateCustomers(ctx context.Context) {
	if c.cache != nil {
		c.cache.InvalidateCustomers(ctx)
	}
}

func (c *Client) invalidateUsers(ctx context.Context) {
	if c.cache != nil {
		c.cache.InvalidateUsers(ctx)
	}
}

// documentPaths are the endpoints of one controlled document library.
type documentPaths struct {
	collection string
	noun       string
}

var (
	policies   = documentPaths{collection: "/policies/", noun: "policy"}
	procedures = documentPaths{collection: "/procedures/", noun: "procedure"}
)

func (c *Client) createDocument(ctx context.Context, p documentPaths, in models.DocumentInput) (*models.DocumentDetail, error) {
	var out models.DocumentDetail
	if err := c.post(ctx, p.collection+"create/", in, &out, "Failed to create "+p.noun); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) updateDocument(ctx context.Context, p documentPaths, id string, in models.DocumentInput) (*models.DocumentDetail, error) {
	var out models.DocumentDetail
	if err := c.patch(ctx, p.collection+escape(id)+"/", in, &out, "Failed to update "+p.noun); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) deleteDocument(ctx context.Context, p documentPaths, id string) error {
	return c.delete(ctx, p.collection+escape(id)+"/", "Failed to delete "+p.noun)
}

// CreatePolicy adds a policy.
func (c *Client) CreatePolicy(ctx context.Context, in models.DocumentInput) (*models.DocumentDetail, error) {
	return c.createDocument(ctx, policies, in)
}

// UpdatePolicy edits a policy.
func (c *Client) UpdatePolicy(ctx context.Context, id string, in models.DocumentInput) (*models.DocumentDetail, error) {
	return c.updateDocument(ctx, policies, id, in)
}

// DeletePolicy removes a policy.
func (c *Client) DeletePolicy(ctx context.Context, id string) error {
	return c.deleteDocument(ctx, policies, id)
}

// ArchivePolicy hides a policy from the portal without deleting it.
func (c *Client) ArchivePolicy(ctx context.Context, id string) (*models.DocumentDetail, error) {
	return c.UpdatePolicy(ctx, id, models.DocumentInput{Status: models.DocumentStatusArchived})
}

// CreateProcedure adds a procedure.
func (c *Client) CreateProcedure(ctx context.Context, in models.DocumentInput) (*models.DocumentDetail, error) {
	return c.createDocument(ctx, procedures, in)
}

// UpdateProcedure edits a procedure.
func (c *Client) UpdateProcedure(ctx context.Context, id string, in models.DocumentInput) (*models.DocumentDetail, error) {
	return c.updateDocument(ctx, procedures, id, in)
}

// DeleteProcedure removes a procedure.
func (c *Client) DeleteProcedure(ctx context.Context, id string) error {
	return c.deleteDocument(ctx, procedures, id)
}

// ArchiveProcedure hides a procedure from the portal without deleting it.
func (c *Client) ArchiveProcedure(ctx context.Context, id string) (*models.DocumentDetail, error) {
	return c.UpdateProcedure(ctx, id, models.DocumentInput{Status: models.DocumentStatusArchived})
}

// UpdateAsset edits an asset. Rejections of the write-once identifying fields
// are reported ahead of the generic detail.
func (c *Client) UpdateAsset(ctx context.Context, id string, in models.AssetUpdate) (*models.AssetSummary, error) {
	var out models.AssetSummary
	err := c.patch(ctx, "/assets/"+escape(id)+"/", in, &out, "Failed to update asset",
		"serial_number", "manufacturer_model")
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateIncident opens a data-correction incident on an asset.
func (c *Client) CreateIncident(ctx context.Context, in models.IncidentInput) (*models.Incident, error) {
	var out models.Incident
	if err := c.post(ctx, "/incidents/", in, &out, "Failed to create incident"); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateIntakeRequest submits a disposal request.
func (c *Client) CreateIntakeRequest(ctx context.Context, in models.IntakeRequestInput) (*models.CreatedRef, error) {
	var out models.CreatedRef
	if err := c.post(ctx, "/intake-requests/", in, &out, "Failed to create intake request"); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateWorkOrder groups assets into a work order.
func (c *Client) CreateWorkOrder(ctx context.Context, in models.WorkOrderInput) (*models.WorkOrder, error) {
	var out models.WorkOrder
	if err := c.post(ctx, "/work-orders/", in, &out, "Failed to create work order"); err != nil {
		return nil, err
	}
	return &out, nil
}

// CancelWorkOrder cancels a work order.
func (c *Client) CancelWorkOrder(ctx context.Context, id string) (*models.WorkOrder, error) {
	var out models.WorkOrder
	if err := c.post(ctx, "/work-orders/"+escape(id)+"/cancel/", nil, &out, "Failed to cancel work order"); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateShipment opens a shipment for a work order.
func (c *Client) CreateShipment(ctx context.Context, workOrderID string, in models.ShipmentInput) (*models.Shipment, error) {
	var out models.Shipment
	path := "/work-orders/" + escape(workOrderID) + "/shipments/"
	if err := c.post(ctx, path, in, &out, "Failed to create shipment"); err != nil {
		return nil, err
	}
	return &out, nil
}

// MarkShipmentCompleted locks a shipment as shipped.
func (c *Client) MarkShipmentCompleted(ctx context.Context, id string) (*models.Shipment, error) {
	var out models.Shipment
	path := "/shipments/" + escape(id) + "/mark-completed/"
	if err := c.post(ctx, path, nil, &out, "Failed to mark shipment completed"); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteShipment removes an empty shipment.
func (c *Client) DeleteShipment(ctx context.Context, id string) error {
	return c.delete(ctx, "/shipments/"+escape(id)+"/", "Failed to delete shipment")
}

// SubmitContactForm sends the public contact form.
func (c *Client) SubmitContactForm(ctx context.Context, in models.ContactInput) (*models.CreatedRef, error) {
	var out models.CreatedRef
	if err := c.post(ctx, "/contact/", in, &out, "Failed to send message"); err != nil {
		return nil, err
	}
	return &out, nil
}
