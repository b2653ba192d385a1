package query

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNoCompleter is returned from Answer when the service was built
// without a chat completion client.
var ErrNoCompleter = errors.New("query: no completion client configured")

const answerSystemPrompt = "You answer questions about retail transactions. " +
	"Use only the transactions provided in the context. " +
	"If the context does not contain the answer, say so."

// Answer runs a product search for text and asks the completion client to
// answer from the retrieved transactions. The grounded results are
// returned alongside the generated answer.
func (s *Service) Answer(ctx context.Context, text string, k int) (string, []RankedResult, error) {
	if s.completer == nil {
		return "", nil, ErrNoCompleter
	}

	results, err := s.SearchProduct(ctx, text, k)
	if err != nil {
		return "", nil, err
	}
	if len(results) == 0 {
		return "No matching transactions were found.", nil, nil
	}

	prompt := buildAnswerPrompt(text, results)
	answer, err := s.completer.Complete(ctx, answerSystemPrompt, prompt)
	if err != nil {
		return "", nil, fmt.Errorf("generating answer: %w", err)
	}
	return answer, results, nil
}

func buildAnswerPrompt(question string, results []RankedResult) string {
	var b strings.Builder
	b.WriteString("Context transactions:\n")
	for i, r := range results {
		t := r.Transaction
		fmt.Fprintf(&b, "%d. %s (%s): %d x %.2f, invoice %s, customer %s, %s, %s\n",
			i+1, t.Description, t.Category, t.Quantity, t.UnitPrice,
			t.InvoiceNo, t.CustomerID, t.Country,
			t.InvoiceDate.Format("2006-01-02"))
	}
	b.WriteString("\nQuestion: ")
	b.WriteString(question)
	return b.String()
}
