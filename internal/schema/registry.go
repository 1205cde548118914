package schema

// Registry is the static data catalog. It is indexed ahead of time by
// cmd/sibyl-index, which embeds each entry's text and upserts it into the
// semantic_schema_registry table that the retriever searches.
func Registry() []Entry {
	return []Entry{
		{
			Name:        "states",
			Kind:        "table",
			Description: "List of states. Used to map state_id to state_name.",
			Grain:       "One row per state",
			Columns: `
states(
    state_id,        -- integer, primary key
    state_name       -- varchar, unique
)`,
		},
		{
			Name:        "years",
			Kind:        "table",
			Description: "Financial or calendar years used for reporting.",
			Grain:       "One row per year",
			Columns: `
years(
    year_id,         -- integer, primary key
    year_name        -- varchar (e.g. 2023-24)
)`,
		},
		{
			Name:        "projects",
			Kind:        "table",
			Description: "CSR projects with associated state and year.",
			Grain:       "One row per project",
			Columns: `
projects(
    project_id,      -- integer, primary key
    project_name,    -- varchar
    start_date,      -- date
    end_date,        -- date (nullable)
    state_id,        -- integer, FK to states
    year_id          -- integer, FK to years
)`,
		},
		{
			Name:        "budgets",
			Kind:        "table",
			Description: "Budget amounts allocated to projects.",
			Grain:       "One row per budget entry per project",
			Columns: `
budgets(
    budget_id,       -- integer, primary key
    project_id,      -- integer, FK to projects
    amount           -- numeric(12,2)
)`,
		},
		{
			Name:        "beneficiaries",
			Kind:        "table",
			Description: "Beneficiary counts recorded against projects, broken down by group.",
			Grain:       "One row per project per beneficiary group",
			Columns: `
beneficiaries(
    beneficiary_id,  -- integer, primary key
    project_id,      -- integer, FK to projects
    group_name,      -- varchar (women, children, farmers, shg_members, ...)
    head_count       -- integer
)`,
		},
		{
			Name:        "csr_expenditure_view",
			Kind:        "view",
			Description: "CSR expenditure aggregated by state and year.",
			Grain:       "One row per state per year",
			Columns: `
csr_expenditure_view(
    state_name,
    financial_year,
    expenditure_amount
)`,
		},
	}
}
