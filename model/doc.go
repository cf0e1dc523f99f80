/*

Package model provides hyper-parameters and the common base of ranking models.

Models live in sub-packages:

	* slim: balanced-neighborhood sparse linear method (item-based or user-based) with a fairness regularizer

*/
package model
