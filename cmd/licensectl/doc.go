// Command licensectl runs the workshop licensing server and administers
// licenses, signing keys and the audit trail.
//
// # Quick Start
//
//	# Generate a data key for encrypting private keys at rest
//	licensectl data-key generate > data_key
//	export LICENSING_DATA_KEY=$(cat data_key)
//
//	# Run database migrations and create the first signing key
//	licensectl db migrate
//	licensectl key rotate --actor admin
//
//	# Start the server
//	LICENSING_ADMIN_TOKEN=... licensectl server
//
//	# Bind a license to a workshop machine
//	licensectl fingerprint
//	licensectl license issue --workshop WS-001 --business "Al Noor Garage" \
//	  --email owner@alnoor.example --type Standard --fingerprint <fp> --actor admin
//
// # Environment Variables
//
//   - DATABASE_URL: PostgreSQL connection string
//   - LICENSING_DATA_KEY: Base64-encoded 256-bit key for private key encryption
//   - LICENSING_ADMIN_TOKEN: Bearer token for the administrative endpoints
//   - LICENSING_CONFIG_PATH: Directory holding licensing.yml
//   - LICENSING_LOG_LEVEL: Log level (debug, info, warn, error)
//   - LICENSING_STATE_KEY: Secret sealing the offline session file
//   - PORT: Server port (default: 8080)
package main
