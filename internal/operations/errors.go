package operations

import "errors"

var (
	// ErrPrerequisite means the environment is not ready for a deploy.
	// Nothing has been backed up or touched.
	ErrPrerequisite = errors.New("prerequisite check failed")

	// ErrBuild means the image build failed; the running service is untouched.
	ErrBuild = errors.New("build failed")

	// ErrVerification means the test suite failed against the new image;
	// the running service is untouched.
	ErrVerification = errors.New("verification failed")

	// ErrServiceControl means stopping or starting the service failed.
	ErrServiceControl = errors.New("service stop/start failed")

	// ErrHealthTimeout means the new service never became ready.
	ErrHealthTimeout = errors.New("health check timed out")

	// ErrRollback means restoring the previous state failed.
	ErrRollback = errors.New("rollback failed")
)
