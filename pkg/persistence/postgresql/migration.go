package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Create workflows table
			CREATE TABLE workflows (
				id VARCHAR(255) PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				namespace VARCHAR(255) NOT NULL DEFAULT 'default',
				owner VARCHAR(255),
				metadata JSONB,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_workflows_namespace ON workflows(namespace);
			CREATE INDEX idx_workflows_owner ON workflows(owner);

			-- Create workflow_versions table
			CREATE TABLE workflow_versions (
				workflow_id VARCHAR(255) NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
				version BIGINT NOT NULL,
				graph JSONB NOT NULL,
				metadata JSONB,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				PRIMARY KEY (workflow_id, version)
			);

			CREATE INDEX idx_workflow_versions_workflow_id ON workflow_versions(workflow_id);
		`,
		2: `
			-- Create trace_sessions table
			CREATE TABLE trace_sessions (
				id VARCHAR(255) PRIMARY KEY,
				workflow_id VARCHAR(255) NOT NULL,
				workflow_name VARCHAR(255),
				owner VARCHAR(255),
				status VARCHAR(50) NOT NULL CHECK (status IN ('running', 'completed', 'failed')),
				started_at TIMESTAMP WITH TIME ZONE NOT NULL,
				ended_at TIMESTAMP WITH TIME ZONE,
				event_count INT NOT NULL DEFAULT 0,
				total_data_bytes BIGINT NOT NULL DEFAULT 0,
				avg_node_duration_ms DOUBLE PRECISION NOT NULL DEFAULT 0,
				duration_samples INT NOT NULL DEFAULT 0
			);

			CREATE INDEX idx_trace_sessions_workflow_id ON trace_sessions(workflow_id);
			CREATE INDEX idx_trace_sessions_status ON trace_sessions(status);
			CREATE INDEX idx_trace_sessions_started_at ON trace_sessions(started_at);

			-- Create trace_events table (append-only, session cascade only)
			CREATE TABLE trace_events (
				id VARCHAR(255) PRIMARY KEY,
				session_id VARCHAR(255) NOT NULL REFERENCES trace_sessions(id) ON DELETE CASCADE,
				timestamp TIMESTAMP WITH TIME ZONE NOT NULL,
				node_id VARCHAR(255) NOT NULL,
				event_type VARCHAR(50) NOT NULL CHECK (event_type IN ('input', 'output', 'error', 'log')),
				data JSONB NOT NULL DEFAULT '{}',
				metadata JSONB
			);

			CREATE INDEX idx_trace_events_session_id ON trace_events(session_id);
			CREATE INDEX idx_trace_events_timestamp ON trace_events(timestamp);
		`,
		3: `
			-- Create webhook_subscriptions table
			CREATE TABLE webhook_subscriptions (
				id VARCHAR(255) PRIMARY KEY,
				namespace VARCHAR(255) NOT NULL DEFAULT 'default',
				url TEXT NOT NULL,
				event_names TEXT[] NOT NULL DEFAULT '{}',
				headers JSONB,
				active BOOLEAN NOT NULL DEFAULT true
			);

			CREATE INDEX idx_webhook_subscriptions_namespace ON webhook_subscriptions(namespace);
			CREATE INDEX idx_webhook_subscriptions_active ON webhook_subscriptions(active);
		`,
	}
}
