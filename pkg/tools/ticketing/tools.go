package ticketing

import (
	"context"

	"github.com/mpatwa/resolute/pkg/tool"
)

// CreateSpec declares the ticket-creation tool. Authoritative: a failed
// create must surface as a turn failure rather than a conversational error,
// so the user is never told a ticket exists when it does not.
func CreateSpec() tool.Spec {
	return tool.Spec{
		Name:        "create_ticket",
		Description: "Create a support ticket. Use an appropriate subject derived from the conversation as the query. Requires the user's email address.",
		Params: []tool.Param{
			{Name: "query", Type: "string", Description: "The ticket subject.", Required: true},
			{Name: "email", Type: "string", Description: "The user's email address.", Required: true},
		},
		Authoritative: true,
	}
}

// StatusSpec declares the ticket-status tool. Also authoritative.
func StatusSpec() tool.Spec {
	return tool.Spec{
		Name:        "ticket_status",
		Description: "Look up the status of an existing support ticket. Requires the ticket ID and the user's email address.",
		Params: []tool.Param{
			{Name: "ticket_id", Type: "string", Description: "The ticket ID.", Required: true},
			{Name: "email", Type: "string", Description: "The user's email address.", Required: true},
		},
		Authoritative: true,
	}
}

// CallCreate implements tool.Handler for ticket creation.
func (c *Client) CallCreate(ctx context.Context, args map[string]string) (string, error) {
	return c.CreateTicket(ctx, args["query"], args["email"])
}

// CallStatus implements tool.Handler for ticket status lookup.
func (c *Client) CallStatus(ctx context.Context, args map[string]string) (string, error) {
	return c.TicketStatus(ctx, args["ticket_id"], args["email"])
}
