// Package dataset seeds and imports the training example store.
package dataset

import (
	"context"
	"fmt"

	"github.com/civicgo/kaiwa/internal/models"
	"github.com/civicgo/kaiwa/internal/store"
)

// seedExamples is the built-in portal example set, used when the store is
// empty so a fresh install can train immediately.
var seedExamples = []models.TrainingExample{
	{Pattern: "Hello", Intent: "greeting"},
	{Pattern: "Hi there", Intent: "greeting"},
	{Pattern: "Good morning", Intent: "greeting"},
	{Pattern: "Hey", Intent: "greeting"},

	{Pattern: "Goodbye", Intent: "farewell"},
	{Pattern: "Bye for now", Intent: "farewell"},
	{Pattern: "See you later", Intent: "farewell"},

	{Pattern: "Thanks a lot", Intent: "thanks"},
	{Pattern: "Thank you for the help", Intent: "thanks"},

	{Pattern: "What is my account balance", Intent: "account_balance"},
	{Pattern: "How much do I owe", Intent: "account_balance"},
	{Pattern: "Show my outstanding amount", Intent: "account_balance"},
	{Pattern: "Check balance on my water bill", Intent: "account_balance"},

	{Pattern: "I want to upload a report", Intent: "report_upload"},
	{Pattern: "How do I submit a complaint report", Intent: "report_upload"},
	{Pattern: "Report a broken streetlight", Intent: "report_upload"},

	{Pattern: "Send me my statement", Intent: "statement_request"},
	{Pattern: "I need my latest invoice", Intent: "statement_request"},
	{Pattern: "Where can I download my statement", Intent: "statement_request"},

	{Pattern: "What are your office hours", Intent: "office_hours"},
	{Pattern: "When is the office open", Intent: "office_hours"},
	{Pattern: "Where is the city office located", Intent: "office_hours"},

	{Pattern: "I forgot my password", Intent: "password_reset"},
	{Pattern: "Reset my password please", Intent: "password_reset"},
	{Pattern: "I cannot log in to my account", Intent: "password_reset"},

	{Pattern: "When is garbage collected in my area", Intent: "garbage_schedule"},
	{Pattern: "What day is trash pickup", Intent: "garbage_schedule"},
	{Pattern: "Recycling collection schedule", Intent: "garbage_schedule"},

	{Pattern: "What is the status of my permit", Intent: "permit_status"},
	{Pattern: "Check my building permit application", Intent: "permit_status"},
	{Pattern: "Has my permit been approved", Intent: "permit_status"},
}

// seedResponses pairs each seed intent with canned replies.
var seedResponses = map[string][]string{
	"greeting":          {"Hello! How can I help you today?", "Hi! What can I do for you?"},
	"farewell":          {"Goodbye! Have a great day.", "See you next time."},
	"thanks":            {"You're welcome!", "Happy to help."},
	"account_balance":   {"You can see your current balance on the Account page of the portal.", "Your balance is shown under Account > Overview."},
	"report_upload":     {"You can upload reports under Services > Submit a report.", "Go to Services and choose Submit a report to upload your file."},
	"statement_request": {"Statements can be downloaded under Account > Statements.", "Your latest statement is available on the Statements page."},
	"office_hours":      {"City offices are open Monday to Friday, 8:00 to 17:00.", "We're open weekdays from 8:00 until 17:00."},
	"password_reset":    {"Use the Forgot password link on the sign-in page to reset it.", "You can reset your password from the sign-in screen."},
	"garbage_schedule":  {"Collection schedules per district are listed under Services > Waste collection.", "Check Services > Waste collection for your district's pickup days."},
	"permit_status":     {"Permit application status is shown under Services > Permits.", "You can track your permit under Services > Permits."},
}

// Seed inserts the built-in example set and response table when the store
// holds no examples yet. A populated store is left untouched.
func Seed(ctx context.Context, s *store.ExampleStore) error {
	n, err := s.CountExamples(ctx)
	if err != nil {
		return fmt.Errorf("count examples: %w", err)
	}
	if n > 0 {
		return nil
	}
	if err := s.AddExamples(ctx, seedExamples); err != nil {
		return fmt.Errorf("seed examples: %w", err)
	}
	for intent, responses := range seedResponses {
		if err := s.SetResponses(ctx, intent, responses); err != nil {
			return fmt.Errorf("seed responses: %w", err)
		}
	}
	return nil
}
