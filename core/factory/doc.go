// Copyright (c) 2018 Yandex LLC. All rights reserved.
// Use of this source code is governed by a MPL 2.0
// license that can be found in the LICENSE file.

// Package factory turns a plugin interface into a registry-and-loader for
// its implementations. A Family is declared for some plugin interface type
// and owns a registry of Derivatives: named constructors of that
// interface's implementations. Given a short name, the Family locates the
// matching derivative, lazily loads it if it is not registered yet, and
// creates an instance.
//
// Derivatives register themselves explicitly, usually from package init:
//
//	var drivers = factory.Declare((*Driver)(nil), "db.Driver", factory.WithSearchDirs("drivers"))
//
//	func init() {
//		drivers.Register("mysql.MysqlDriver", NewMysqlDriver)
//	}
//
// Each derivative is indexed under several lookup keys: its identity, its
// declared name, the lowercased declared name, and the lowercased short
// form. For a "Driver" family the short form of "mysql.MysqlDriver" is
// "mysql", so all of the following create the same derivative:
//
//	drivers.Create("mysql")
//	drivers.Create("MySQL")
//	drivers.Create("mysql.MysqlDriver")
//	drivers.Create("MYSQL.MYSQLDRIVER")
//
// If an identifier is not registered, the Family derives a module name
// from it, generates candidate paths for every configured search directory
// and asks its Loader to load them in order. The first loaded unit wins;
// units that are not found are skipped; the first unit that is found but
// fails to load is reported if nothing loads at all.
//
// Type expectations.
// Registered constructor should have type func([args...]) (<pluginImpl>[, error]),
// where <pluginImpl> is assignable to the family plugin interface.
// If constructor accepts exactly one struct or struct pointer, that argument
// is treated as config: New fills it, and Create passes the default config
// when called without arguments.
package factory
