// Package testing provides test utilities, builders and fixtures shared by
// the provisioning packages.
//
//   - ConfigBuilder: fluent builder for validated cluster configurations
//   - FakeCluster: in-memory Hetzner project, cluster API and Talos API that
//     record every mutation in order
//
// Usage:
//
//	cfg := testing.NewConfigBuilder().
//	    WithClusterName("demo").
//	    WithPool("worker", config.RoleWorker, 2).
//	    Build(t)
//
//	fc := testing.NewFakeCluster("demo")
//	fc.SeedPool("worker", config.RoleWorker, 2)
package testing
