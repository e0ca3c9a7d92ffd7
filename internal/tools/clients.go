package tools

import (
	"context"
	"fmt"
	"strings"

	"invoice-agent/internal/core"
	"invoice-agent/internal/memory"
)

// updateClientInfo edits the client of the referenced invoice, or a client named
// directly when no invoice is meant.
func (e *Engine) updateClientInfo(ctx context.Context, userID string, args UpdateClientArgs) (Result, error) {
	f := clientFields{Email: args.Email, Phone: args.Phone, Address: args.Address, TaxNumber: args.TaxNumber}
	if f.Email != "" && !validEmail(f.Email) {
		return Result{}, invalidf("%q doesn't look like an email address.", f.Email)
	}
	newName := strings.Join(strings.Fields(args.NewName), " ")

	var (
		inv    *core.Invoice
		client *core.Client
		err    error
	)
	if name := trimmed(args.ClientName); name != "" && args.InvoiceIdentifier == "" {
		clients, err := e.findClientsByName(ctx, userID, name)
		if err != nil {
			return Result{}, err
		}
		switch len(clients) {
		case 0:
			return Result{}, notFoundf("I couldn't find a client called %q.", name)
		case 1:
			client = &clients[0]
		default:
			return Result{}, invalidf("Several clients match %q: %s. Which one?", name, clientNames(clients))
		}
	} else {
		if inv, err = e.resolveInvoice(ctx, userID, args.InvoiceIdentifier); err != nil {
			return Result{}, err
		}
		if client, err = e.clientOf(ctx, userID, inv.ClientID); err != nil {
			return Result{}, err
		}
		if client == nil {
			if newName == "" {
				return Result{}, invalidf("%s has no client yet. What is the client's name?", inv.Number)
			}
			if client, err = e.upsertClient(ctx, userID, clientFields{Name: newName, Email: f.Email, Phone: f.Phone, Address: f.Address, TaxNumber: f.TaxNumber}); err != nil {
				return Result{}, err
			}
			inv.ClientID = client.ID
			if err := e.gw.UpdateInvoice(ctx, inv); err != nil {
				return Result{}, fmt.Errorf("update invoice %s: %w", inv.Number, err)
			}
			return e.invoiceResult(ctx, inv, nil, memory.ActionUpdatedClientInfo,
				fmt.Sprintf("%s is now addressed to %s.", inv.Number, client.Name))
		}
	}

	changed := mergeClient(client, f)
	if newName != "" && newName != client.Name {
		client.Name, changed = newName, true
	}
	if !changed {
		return Result{}, invalidf("What would you like to change for %s?", client.Name)
	}
	if err := e.gw.UpdateClient(ctx, client); err != nil {
		return Result{}, fmt.Errorf("update client %s: %w", client.ID, err)
	}

	msg := fmt.Sprintf("Updated %s: %s.", client.Name, describeClient(client))
	if inv != nil {
		return e.invoiceResult(ctx, inv, nil, memory.ActionUpdatedClientInfo, msg)
	}
	return Result{
		Success: true,
		Message: msg,
		Data:    client,
		Effect: &Effect{
			Action:     memory.ActionUpdatedClientInfo,
			ClientID:   client.ID,
			ClientName: client.Name,
		},
	}, nil
}

func (e *Engine) searchClients(ctx context.Context, userID string, args SearchClientsArgs) (Result, error) {
	limit := 10
	if args.Limit != nil && *args.Limit > 0 && *args.Limit < limit {
		limit = *args.Limit
	}
	clients, err := e.gw.FindClients(ctx, core.ClientFilter{UserID: userID, Query: trimmed(args.Query), Limit: limit})
	if err != nil {
		return Result{}, fmt.Errorf("search clients: %w", err)
	}
	if len(clients) == 0 {
		return Result{Success: true, Message: "No clients match that.", Data: []core.Client{}}, nil
	}
	lines := make([]string, len(clients))
	for i := range clients {
		lines[i] = fmt.Sprintf("- %s: %s", clients[i].Name, describeClient(&clients[i]))
	}
	return Result{
		Success: true,
		Message: fmt.Sprintf("Found %s:\n%s", plural(len(clients), "client", "clients"), strings.Join(lines, "\n")),
		Data:    clients,
	}, nil
}

func describeClient(c *core.Client) string {
	var parts []string
	for _, p := range []struct{ label, v string }{
		{"email", c.Email}, {"phone", c.Phone}, {"address", c.Address}, {"tax number", c.TaxNumber},
	} {
		if p.v != "" {
			parts = append(parts, p.label+" "+p.v)
		}
	}
	if len(parts) == 0 {
		return "no contact details"
	}
	return strings.Join(parts, ", ")
}

func clientNames(cs []core.Client) string {
	names := make([]string, len(cs))
	for i, c := range cs {
		names[i] = c.Name
	}
	return strings.Join(names, ", ")
}
