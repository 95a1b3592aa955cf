package people

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Neruzzz/toolchat/internal/tools"
)

type queryArgs struct {
	Query string `json:"query" jsonschema:"SQL statement to execute"`
}

type readArgs struct {
	Query string `json:"query,omitempty" jsonschema:"SELECT statement, defaults to SELECT * FROM people"`
}

type addPersonArgs struct {
	Name  string `json:"name" jsonschema:"full name"`
	Age   int    `json:"age" jsonschema:"age in years"`
	Email string `json:"email" jsonschema:"email address"`
}

type updatePersonArgs struct {
	PersonID int64   `json:"person_id" jsonschema:"id of the person to update"`
	Name     *string `json:"name,omitempty" jsonschema:"new name"`
	Age      *int    `json:"age,omitempty" jsonschema:"new age"`
	Email    *string `json:"email,omitempty" jsonschema:"new email"`
}

type personIDArgs struct {
	PersonID int64 `json:"person_id" jsonschema:"id of the person"`
}

const defaultReadQuery = "SELECT * FROM people"

// SystemPrompt steers a model toward the database tools by their exact names.
const SystemPrompt = `You are a helpful database assistant with access to a SQLite database.
You can help users:
- Query the database to find information
- Add new records to the database
- Update or delete existing records
- Count records

When users ask questions, think about which tools to use and call them appropriately.
Always be clear about what data you're working with.

Available tools:
- add_person: Add a new person (use this for simple additions)
- read_data: Query the database (use SELECT queries)
- add_data: Execute INSERT/UPDATE/DELETE SQL
- update_person: Update existing person
- delete_person: Delete a person by ID
- count_people: Count total people

IMPORTANT:
- Use the EXACT tool names listed above.
- Do NOT append '_Schema' or any other suffix to tool names.
- For simple requests like "add a person", use add_person.
- For complex queries, use read_data with SQL.`

// Tools returns the six database tools bound to store.
func Tools(store *Store) []tools.Tool {
	return []tools.Tool{
		tools.Define("add_data", "Execute an INSERT/UPDATE/DELETE query on the database",
			func(ctx context.Context, in queryArgs) (any, error) {
				n, err := store.Exec(ctx, in.Query)
				if err != nil {
					return errorText(ctx, "add_data", err), nil
				}
				return fmt.Sprintf("Success! %d row(s) affected.", n), nil
			}),

		tools.Define("read_data", "Execute a SELECT query and return results",
			func(ctx context.Context, in readArgs) (any, error) {
				q := strings.TrimSpace(in.Query)
				if q == "" {
					q = defaultReadQuery
				}
				rows, err := store.Query(ctx, q)
				if err != nil {
					return errorText(ctx, "read_data", err), nil
				}
				return FormatRows(rows), nil
			}),

		tools.Define("add_person", "Add a new person to the database (easier than writing SQL)",
			func(ctx context.Context, in addPersonArgs) (any, error) {
				if _, err := store.AddPerson(ctx, in.Name, in.Age, in.Email); err != nil {
					return errorText(ctx, "add_person", err), nil
				}
				return fmt.Sprintf("✅ Added %s to database!", in.Name), nil
			}),

		tools.Define("update_person", "Update an existing person's information",
			func(ctx context.Context, in updatePersonArgs) (any, error) {
				err := store.UpdatePerson(ctx, in.PersonID, Update{Name: in.Name, Age: in.Age, Email: in.Email})
				switch {
				case errors.Is(err, ErrNoUpdates):
					return "No updates provided", nil
				case errors.Is(err, ErrNotFound):
					return fmt.Sprintf("No person found with ID %d", in.PersonID), nil
				case err != nil:
					return errorText(ctx, "update_person", err), nil
				}
				return fmt.Sprintf("✅ Updated person with ID %d", in.PersonID), nil
			}),

		tools.Define("delete_person", "Delete a person from the database by their ID",
			func(ctx context.Context, in personIDArgs) (any, error) {
				err := store.DeletePerson(ctx, in.PersonID)
				switch {
				case errors.Is(err, ErrNotFound):
					return fmt.Sprintf("No person found with ID %d", in.PersonID), nil
				case err != nil:
					return errorText(ctx, "delete_person", err), nil
				}
				return fmt.Sprintf("✅ Deleted person with ID %d", in.PersonID), nil
			}),

		tools.Define("count_people", "Count the total number of people in the database",
			func(ctx context.Context, _ struct{}) (any, error) {
				n, err := store.Count(ctx)
				if err != nil {
					return errorText(ctx, "count_people", err), nil
				}
				return fmt.Sprintf("Total people in database: %d", n), nil
			}),
	}
}

func errorText(ctx context.Context, tool string, err error) string {
	slog.WarnContext(ctx, "Database tool failed", "tool", tool, "error", err)
	return "Error: " + err.Error()
}

// FormatRows renders a result set as a header line followed by one tuple
// per row.
func FormatRows(rows Rows) string {
	if len(rows.Values) == 0 {
		return "No data found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Columns: %s\n\n", strings.Join(rows.Columns, ", "))
	for _, row := range rows.Values {
		parts := make([]string, len(row))
		for i, v := range row {
			parts[i] = formatValue(v)
		}
		fmt.Fprintf(&b, "(%s)\n", strings.Join(parts, ", "))
	}
	return b.String()
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case string:
		return "'" + strings.ReplaceAll(x, "'", "\\'") + "'"
	default:
		return fmt.Sprint(x)
	}
}
