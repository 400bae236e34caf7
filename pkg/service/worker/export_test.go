package worker

// StoreSnapshot is exported for testing
var StoreSnapshot = (*RegisterRefresher).store
