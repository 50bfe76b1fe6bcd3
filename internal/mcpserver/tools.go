package mcpserver

import "github.com/mark3labs/mcp-go/mcp"

// Tool definitions for the SentryPay MCP server.
// Descriptions are what the LLM reads to decide which tool to use.

var ToolSchedulePayment = mcp.NewTool("schedule_payment",
	mcp.WithDescription(
		"Schedule a one-off or recurring crypto payment. "+
			"The payment is executed automatically when its scheduled date arrives, "+
			"after passing a fraud-risk check. Amounts are in USDC unless another "+
			"currency is given."),
	mcp.WithString("user_id",
		mcp.Required(),
		mcp.Description("The user the payment belongs to")),
	mcp.WithString("payee",
		mcp.Required(),
		mcp.Description("Recipient wallet address (e.g. '0x1234...')")),
	mcp.WithString("amount",
		mcp.Required(),
		mcp.Description("Amount to pay as a decimal string (e.g. '25.50')")),
	mcp.WithString("scheduled_date",
		mcp.Required(),
		mcp.Description("When to execute, RFC3339 (e.g. '2026-10-01T09:00:00Z')")),
	mcp.WithString("currency",
		mcp.Description("Payment currency (default 'USDC')")),
	mcp.WithString("description",
		mcp.Description("What the payment is for (e.g. 'October rent')")),
	mcp.WithString("frequency",
		mcp.Description("Repeat cadence for recurring payments"),
		mcp.Enum("daily", "weekly", "monthly", "yearly")),
	mcp.WithNumber("interval",
		mcp.Description("Repeat every N periods (default 1, e.g. 2 with 'weekly' = biweekly)")),
	mcp.WithString("end_date",
		mcp.Description("Stop recurring after this date, RFC3339 (optional)")),
)

var ToolCancelPayment = mcp.NewTool("cancel_payment",
	mcp.WithDescription(
		"Cancel a scheduled payment before it executes. "+
			"Fails with a conflict if the payment has already started executing "+
			"or reached a final state."),
	mcp.WithString("payment_id",
		mcp.Required(),
		mcp.Description("The payment ID from a previous schedule_payment result (e.g. 'pay_...')")),
)

var ToolListPayments = mcp.NewTool("list_payments",
	mcp.WithDescription(
		"List a user's scheduled payments, newest first. "+
			"Optionally filter by status to see only upcoming, completed, or failed payments."),
	mcp.WithString("user_id",
		mcp.Required(),
		mcp.Description("The user whose payments to list")),
	mcp.WithString("status",
		mcp.Description("Filter by payment status"),
		mcp.Enum("scheduled", "processing", "completed", "failed", "cancelled")),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of payments to return (default 20)")),
)

var ToolAssessRisk = mcp.NewTool("assess_risk",
	mcp.WithDescription(
		"Run a fraud-risk assessment for a proposed payment without executing it. "+
			"Returns a 0-100 risk score, triggered risk flags, and a recommendation "+
			"(APPROVE, WARN, REQUIRE_2FA, or BLOCK) based on the user's payment history."),
	mcp.WithString("user_id",
		mcp.Required(),
		mcp.Description("The user proposing the payment")),
	mcp.WithString("payee",
		mcp.Required(),
		mcp.Description("Recipient wallet address")),
	mcp.WithString("amount",
		mcp.Required(),
		mcp.Description("Proposed amount as a decimal string")),
	mcp.WithString("currency",
		mcp.Description("Payment currency (default 'USDC')")),
)

var ToolGetBalance = mcp.NewTool("get_balance",
	mcp.WithDescription(
		"Check the platform wallet's current USDC balance and address."),
)

var ToolGetHistory = mcp.NewTool("get_history",
	mcp.WithDescription(
		"List a user's executed payment history, newest first. "+
			"Shows outcomes (completed/failed), amounts, and transaction hashes."),
	mcp.WithString("user_id",
		mcp.Required(),
		mcp.Description("The user whose history to fetch")),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of records to return (default 20)")),
)
