// Package mcpserver exposes SentryPay's payment operations as MCP tools
// so that LLM assistants can schedule payments, assess risk, and inspect
// history through the Model Context Protocol.
package mcpserver

import (
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer creates an MCP server wired to a SentryPay API instance.
func NewMCPServer(cfg Config) *server.MCPServer {
	s := server.NewMCPServer("sentrypay", "0.1.0")

	client := NewSentryPayClient(cfg)
	h := NewHandlers(client)

	s.AddTool(ToolSchedulePayment, h.HandleSchedulePayment)
	s.AddTool(ToolCancelPayment, h.HandleCancelPayment)
	s.AddTool(ToolListPayments, h.HandleListPayments)
	s.AddTool(ToolAssessRisk, h.HandleAssessRisk)
	s.AddTool(ToolGetBalance, h.HandleGetBalance)
	s.AddTool(ToolGetHistory, h.HandleGetHistory)

	return s
}
