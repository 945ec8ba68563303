package e2e

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/cucumber/godog"
)

type document struct {
	ID                int64  `json:"id"`
	DocumentID        string `json:"document_id"`
	CurrentDepartment string `json:"current_department"`
	ReceivedBy        string `json:"received_by"`
	Status            string `json:"status"`
}

type event struct {
	ID         int64  `json:"id"`
	ActionType string `json:"action_type"`
	Pending    bool   `json:"pending"`
}

// RegisterSteps binds every step phrase to tc.
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	ctx.Step(`^I act as "([^"]*)" of "([^"]*)"$`, func(name, dept string) error {
		return tc.ActAs(name, dept, "staff")
	})
	ctx.Step(`^I act as admin "([^"]*)" of "([^"]*)"$`, func(name, dept string) error {
		return tc.ActAs(name, dept, "admin")
	})
	ctx.Step(`^I release a "([^"]*)" titled "([^"]*)" to "([^"]*)" with status "([^"]*)" as "([^"]*)"$`, tc.release)
	ctx.Step(`^I transfer "([^"]*)" to "([^"]*)" with status "([^"]*)"$`, tc.transfer)
	ctx.Step(`^I receive the pending transfer of "([^"]*)"$`, tc.receive)
	ctx.Step(`^I close "([^"]*)"$`, func(alias string) error {
		return tc.onDocument(http.MethodPost, alias, "/close", nil)
	})
	ctx.Step(`^I delete "([^"]*)"$`, func(alias string) error {
		return tc.onDocument(http.MethodDelete, alias, "", nil)
	})
	ctx.Step(`^I fetch "([^"]*)"$`, func(alias string) error {
		return tc.onDocument(http.MethodGet, alias, "", nil)
	})
	ctx.Step(`^the response status should be (\d+)$`, tc.statusShouldBe)
	ctx.Step(`^"([^"]*)" should be held by "([^"]*)" with status "([^"]*)"$`, tc.shouldBeHeldBy)
	ctx.Step(`^"([^"]*)" should have (\d+) history events$`, tc.historyLength)
	ctx.Step(`^"([^"]*)" should have (\d+) pending transfers?$`, tc.pendingCount)
}

func (tc *TestContext) release(docType, title, office, status, alias string) error {
	if err := tc.Do(http.MethodPost, "/documents", map[string]any{
		"title":               title,
		"doc_type":            docType,
		"implementing_office": office,
		"status":              status,
	}); err != nil {
		return err
	}
	if err := tc.statusShouldBe(http.StatusCreated); err != nil {
		return err
	}
	var doc document
	if err := tc.Decode(&doc); err != nil {
		return err
	}
	tc.Documents[alias] = doc.DocumentID
	return nil
}

func (tc *TestContext) onDocument(method, alias, suffix string, body any) error {
	id, ok := tc.Documents[alias]
	if !ok {
		return fmt.Errorf("unknown document %q", alias)
	}
	return tc.Do(method, "/documents/"+id+suffix, body)
}

func (tc *TestContext) transfer(alias, to, status string) error {
	return tc.onDocument(http.MethodPost, alias, "/transfer", map[string]string{
		"to_department": to,
		"status":        status,
	})
}

func (tc *TestContext) receive(alias string) error {
	if err := tc.Do(http.MethodGet, "/transfers/pending", nil); err != nil {
		return err
	}
	var pending struct {
		Transfers []struct {
			ID       int64 `json:"id"`
			RecordID int64 `json:"record_id"`
		} `json:"transfers"`
	}
	if err := tc.Decode(&pending); err != nil {
		return err
	}
	if err := tc.onDocument(http.MethodGet, alias, "", nil); err != nil {
		return err
	}
	var doc document
	if err := tc.Decode(&doc); err != nil {
		return err
	}
	for _, t := range pending.Transfers {
		if t.RecordID == doc.ID {
			return tc.Do(http.MethodPost, "/transfers/"+strconv.FormatInt(t.ID, 10)+"/receive", nil)
		}
	}
	return fmt.Errorf("no pending transfer for %q", alias)
}

func (tc *TestContext) statusShouldBe(want int) error {
	if tc.LastResponse == nil {
		return fmt.Errorf("no request sent")
	}
	if tc.LastResponse.StatusCode != want {
		return fmt.Errorf("expected status %d, got %d: %s", want, tc.LastResponse.StatusCode, tc.LastBody)
	}
	return nil
}

func (tc *TestContext) shouldBeHeldBy(alias, dept, status string) error {
	if err := tc.onDocument(http.MethodGet, alias, "", nil); err != nil {
		return err
	}
	if err := tc.statusShouldBe(http.StatusOK); err != nil {
		return err
	}
	var doc document
	if err := tc.Decode(&doc); err != nil {
		return err
	}
	if doc.CurrentDepartment != dept || doc.Status != status {
		return fmt.Errorf("expected %s/%s, got %s/%s", dept, status, doc.CurrentDepartment, doc.Status)
	}
	return nil
}

func (tc *TestContext) historyLength(alias string, want int) error {
	if err := tc.onDocument(http.MethodGet, alias, "/history", nil); err != nil {
		return err
	}
	var history struct {
		Events []event `json:"events"`
	}
	if err := tc.Decode(&history); err != nil {
		return err
	}
	if len(history.Events) != want {
		return fmt.Errorf("expected %d events, got %d", want, len(history.Events))
	}
	return nil
}

func (tc *TestContext) pendingCount(dept string, want int) error {
	if err := tc.ActAs("checker", dept, "staff"); err != nil {
		return err
	}
	if err := tc.Do(http.MethodGet, "/transfers/pending", nil); err != nil {
		return err
	}
	var pending struct {
		Transfers []event `json:"transfers"`
	}
	if err := tc.Decode(&pending); err != nil {
		return err
	}
	if len(pending.Transfers) != want {
		return fmt.Errorf("expected %d pending transfers, got %d", want, len(pending.Transfers))
	}
	return nil
}
