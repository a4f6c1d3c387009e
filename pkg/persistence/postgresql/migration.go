package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE workflows (
				id VARCHAR(255) PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				is_active BOOLEAN NOT NULL DEFAULT false,
				priority INTEGER NOT NULL DEFAULT 0,
				test_mode BOOLEAN NOT NULL DEFAULT false,
				trigger_type VARCHAR(50) NOT NULL,
				trigger JSONB NOT NULL,
				actions JSONB NOT NULL,
				schedule JSONB,
				max_executions_per_day INTEGER,
				max_executions_per_candidate INTEGER,
				execution_count INTEGER NOT NULL DEFAULT 0,
				success_count INTEGER NOT NULL DEFAULT 0,
				failure_count INTEGER NOT NULL DEFAULT 0,
				last_executed_at TIMESTAMP WITH TIME ZONE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				deleted_at TIMESTAMP WITH TIME ZONE,
				CONSTRAINT workflows_counts_check CHECK (execution_count = success_count + failure_count)
			);

			CREATE INDEX idx_workflows_trigger_active ON workflows(trigger_type, is_active) WHERE deleted_at IS NULL;
			CREATE INDEX idx_workflows_created_at ON workflows(created_at);

			CREATE TABLE workflow_executions (
				id VARCHAR(255) PRIMARY KEY,
				workflow_id VARCHAR(255) NOT NULL,
				workflow_name VARCHAR(255) NOT NULL,
				candidate_id VARCHAR(255) NOT NULL,
				candidate_name VARCHAR(255) NOT NULL DEFAULT '',
				trigger JSONB NOT NULL,
				actions JSONB NOT NULL,
				status VARCHAR(20) NOT NULL CHECK (status IN ('running', 'completed', 'failed')),
				started_at TIMESTAMP WITH TIME ZONE NOT NULL,
				completed_at TIMESTAMP WITH TIME ZONE,
				executed_by VARCHAR(255) NOT NULL,
				test_mode BOOLEAN NOT NULL DEFAULT false,
				results JSONB NOT NULL DEFAULT '[]',
				error TEXT NOT NULL DEFAULT ''
			);

			CREATE INDEX idx_workflow_executions_workflow ON workflow_executions(workflow_id, started_at DESC);
			CREATE INDEX idx_workflow_executions_candidate ON workflow_executions(workflow_id, candidate_id);
		`,
		2: `
			CREATE TABLE candidates (
				id VARCHAR(255) PRIMARY KEY,
				status VARCHAR(100) NOT NULL DEFAULT '',
				data JSONB NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX idx_candidates_status ON candidates(status);

			CREATE TABLE tasks (
				id VARCHAR(255) PRIMARY KEY,
				candidate_id VARCHAR(255) NOT NULL,
				workflow_id VARCHAR(255),
				data JSONB NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_tasks_candidate ON tasks(candidate_id, created_at);
		`,
	}
}
